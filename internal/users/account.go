package users

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	maxUsernameLength = 190
	// bcrypt rejects passwords longer than 72 bytes
	maxPasswordBytes = 72
)

var (
	// ErrInvalidCredentials indicates an unknown username or a wrong password.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrUsernameTaken indicates the username already has an account.
	ErrUsernameTaken = errors.New("users: username taken")
	// ErrInvalidRequest indicates an empty or oversized username or password.
	ErrInvalidRequest = errors.New("users: invalid request")
)

var credentialsValidator = validator.New()

// Account is a registered sync account. The username doubles as the card
// collection's account id.
type Account struct {
	Username     string    `gorm:"column:username;primaryKey;size:190;not null"`
	PasswordHash string    `gorm:"column:password_hash;size:100;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Account) TableName() string {
	return "accounts"
}

// Credentials is a username/password pair as submitted by a client.
type Credentials struct {
	Username string `json:"username" validate:"required,max=190"`
	Password string `json:"password" validate:"required,max=72"`
}

// Normalize trims the username and validates both fields. The password
// limit is counted in bytes.
func (c Credentials) Normalize() (Credentials, error) {
	normalized := Credentials{Username: strings.TrimSpace(c.Username), Password: c.Password}
	if err := credentialsValidator.Struct(normalized); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(normalized.Password) > maxPasswordBytes {
		return Credentials{}, fmt.Errorf("%w: password exceeds %d bytes", ErrInvalidRequest, maxPasswordBytes)
	}
	return normalized, nil
}
