package cards

import (
	"fmt"
	"strings"
	"time"
)

const maxIdentifierLength = 190

// CardID is the opaque, immutable identifier of a card.
type CardID string

// NewCardID validates raw input and returns a CardID.
func NewCardID(rawInput string) (CardID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty card id", ErrValidation)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: card id exceeds %d characters", ErrValidation, maxIdentifierLength)
	}
	return CardID(trimmed), nil
}

// String returns the underlying string identifier.
func (id CardID) String() string {
	return string(id)
}

// HistoryEntry records one judged review.
type HistoryEntry struct {
	Date     time.Time
	Recalled bool
}

// Card is a single flashcard together with its scheduling state.
type Card struct {
	ID             CardID
	Front          string
	Back           string
	Difficulty     int
	LastReviewed   *time.Time
	NextReviewDate time.Time
	History        []HistoryEntry
}

// IsDue reports whether the card should be reviewed at now.
func (c Card) IsDue(now time.Time) bool {
	return !c.NextReviewDate.After(now)
}

// Clone returns a deep copy so callers never share history or timestamps with the store.
func (c Card) Clone() Card {
	clone := c
	if c.LastReviewed != nil {
		lastReviewed := *c.LastReviewed
		clone.LastReviewed = &lastReviewed
	}
	if c.History != nil {
		clone.History = make([]HistoryEntry, len(c.History))
		copy(clone.History, c.History)
	}
	return clone
}

// Text holds the editable faces of a card.
type Text struct {
	Front string
	Back  string
}

// NewText trims both faces and rejects empty ones.
func NewText(front, back string) (Text, error) {
	trimmedFront := strings.TrimSpace(front)
	if trimmedFront == "" {
		return Text{}, fmt.Errorf("%w: front is empty", ErrValidation)
	}
	trimmedBack := strings.TrimSpace(back)
	if trimmedBack == "" {
		return Text{}, fmt.Errorf("%w: back is empty", ErrValidation)
	}
	return Text{Front: trimmedFront, Back: trimmedBack}, nil
}

// ValidateCollection checks a whole collection before it replaces stored cards.
func ValidateCollection(collection []Card) error {
	seen := make(map[CardID]struct{}, len(collection))
	for index, card := range collection {
		if _, err := NewCardID(card.ID.String()); err != nil {
			return fmt.Errorf("card %d: %w", index, err)
		}
		if _, err := NewText(card.Front, card.Back); err != nil {
			return fmt.Errorf("card %s: %w", card.ID, err)
		}
		if _, duplicate := seen[card.ID]; duplicate {
			return fmt.Errorf("%w: duplicate card id %s", ErrValidation, card.ID)
		}
		seen[card.ID] = struct{}{}
	}
	return nil
}
