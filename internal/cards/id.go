package cards

import "github.com/google/uuid"

// IDProvider issues fresh card identifiers.
type IDProvider interface {
	NewID() (CardID, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (CardID, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return CardID(value.String()), nil
}
