package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	// HashCost defaults to bcrypt.DefaultCost.
	HashCost int
	Logger   *zap.Logger
}

// Service registers accounts and checks passwords.
type Service struct {
	db       *gorm.DB
	now      func() time.Time
	hashCost int
	logger   *zap.Logger
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	hashCost := cfg.HashCost
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
	if hashCost < bcrypt.MinCost || hashCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("users: hash cost %d out of range", hashCost)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       cfg.Database,
		now:      clock,
		hashCost: hashCost,
		logger:   logger,
	}, nil
}

// Register creates an account. A new account starts with an empty card collection.
func (s *Service) Register(ctx context.Context, credentials Credentials) (Account, error) {
	normalized, err := credentials.Normalize()
	if err != nil {
		return Account{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(normalized.Password), s.hashCost)
	if err != nil {
		return Account{}, fmt.Errorf("users: hash password: %w", err)
	}

	account := Account{
		Username:     normalized.Username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	// a conflicting insert affects no rows
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "username"}}, DoNothing: true}).
		Create(&account)
	err = result.Error
	if err == nil && result.RowsAffected == 0 {
		err = ErrUsernameTaken
	}
	if err != nil {
		if !errors.Is(err, ErrUsernameTaken) {
			s.logger.Error("account registration failed", zap.String("username", account.Username), zap.Error(err))
		}
		return Account{}, err
	}
	s.logger.Info("account registered", zap.String("username", account.Username))
	return account, nil
}

// Authenticate returns the account when the password matches.
func (s *Service) Authenticate(ctx context.Context, credentials Credentials) (Account, error) {
	normalized, err := credentials.Normalize()
	if err != nil {
		return Account{}, ErrInvalidCredentials
	}

	var account Account
	err = s.db.WithContext(ctx).Where("username = ?", normalized.Username).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		s.logger.Error("account lookup failed", zap.String("username", normalized.Username), zap.Error(err))
		return Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(normalized.Password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}
