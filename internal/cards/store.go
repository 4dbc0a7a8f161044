package cards

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	errMissingPersistence = errors.New("persistence collaborator is required")
	errMissingIDProvider  = errors.New("id provider is required")
	noOpLogger            = zap.NewNop()
)

const (
	opStoreNew     = "cards.store.new"
	opStoreLoad    = "cards.store.load"
	opStorePersist = "cards.store.persist"
)

// Persistence loads and saves a whole card collection.
type Persistence interface {
	LoadAll(ctx context.Context) ([]Card, error)
	SaveAll(ctx context.Context, collection []Card) error
}

// StoreConfig describes the collaborators of a Store.
type StoreConfig struct {
	Persistence Persistence
	Clock       func() time.Time
	IDProvider  IDProvider
	Logger      *zap.Logger
}

// Store owns the card collection of one account. In-memory state is
// authoritative; every mutation is written through to the persistence
// collaborator, and a failed write is retried on the next mutation or Flush.
type Store struct {
	mu          sync.Mutex
	persistence Persistence
	clock       func() time.Time
	idProvider  IDProvider
	logger      *zap.Logger
	cards       []Card
	positions   map[CardID]int
	dirty       bool
}

// NewStore constructs an empty Store. Call Load to read the persisted collection.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Persistence == nil {
		return nil, newServiceError(opStoreNew, "missing_persistence", errMissingPersistence)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opStoreNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{
		persistence: cfg.Persistence,
		clock:       clock,
		idProvider:  cfg.IDProvider,
		logger:      logger,
		positions:   make(map[CardID]int),
	}, nil
}

// Load replaces the in-memory collection with the persisted one.
func (s *Store) Load(ctx context.Context) error {
	loaded, err := s.persistence.LoadAll(ctx)
	if err != nil {
		s.logError(opStoreLoad, "load_failed", err)
		return newServiceError(opStoreLoad, "load_failed", fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	if err := ValidateCollection(loaded); err != nil {
		s.logError(opStoreLoad, "invalid_collection", err)
		return newServiceError(opStoreLoad, "invalid_collection", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(loaded)
	s.dirty = false
	return nil
}

// Create adds a new card that is due immediately.
func (s *Store) Create(ctx context.Context, front, back string) (Card, error) {
	text, err := NewText(front, back)
	if err != nil {
		return Card{}, err
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return Card{}, fmt.Errorf("cards: generate id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.positions[id]; exists {
		return Card{}, fmt.Errorf("%w: duplicate card id %s", ErrValidation, id)
	}
	card := Card{
		ID:             id,
		Front:          text.Front,
		Back:           text.Back,
		Difficulty:     0,
		LastReviewed:   nil,
		NextReviewDate: s.clock().UTC(),
		History:        []HistoryEntry{},
	}
	s.positions[id] = len(s.cards)
	s.cards = append(s.cards, card)
	return card.Clone(), s.persistLocked(ctx)
}

// Update replaces the text of an existing card. Scheduling fields are untouched.
func (s *Store) Update(ctx context.Context, id CardID, front, back string) (Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	position, ok := s.positions[id]
	if !ok {
		return Card{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	text, err := NewText(front, back)
	if err != nil {
		return Card{}, err
	}
	s.cards[position].Front = text.Front
	s.cards[position].Back = text.Back
	return s.cards[position].Clone(), s.persistLocked(ctx)
}

// Delete removes a card permanently.
func (s *Store) Delete(ctx context.Context, id CardID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	position, ok := s.positions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	remaining := slices.Delete(slices.Clone(s.cards), position, position+1)
	s.setLocked(remaining)
	return s.persistLocked(ctx)
}

// Get returns a copy of the card with the given id.
func (s *Store) Get(id CardID) (Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	position, ok := s.positions[id]
	if !ok {
		return Card{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.cards[position].Clone(), nil
}

// SaveReview stores the full record of a card after a scheduling step.
func (s *Store) SaveReview(ctx context.Context, card Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	position, ok := s.positions[card.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, card.ID)
	}
	s.cards[position] = card.Clone()
	return s.persistLocked(ctx)
}

// ReplaceAll swaps the whole collection, typically after a sync merge.
func (s *Store) ReplaceAll(ctx context.Context, collection []Card) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(collection)
	return s.persistLocked(ctx)
}

// DueSet returns the cards due at now, most overdue first.
func (s *Store) DueSet(now time.Time) []Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := make([]Card, 0, len(s.cards))
	for _, card := range s.cards {
		if card.IsDue(now) {
			due = append(due, card.Clone())
		}
	}
	sortByNextReview(due)
	return due
}

// All returns every card ordered by ascending next review date.
func (s *Store) All() []Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]Card, 0, len(s.cards))
	for _, card := range s.cards {
		all = append(all, card.Clone())
	}
	sortByNextReview(all)
	return all
}

// Len returns the number of cards in the collection.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cards)
}

// Dirty reports whether the last write to persistence failed.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Flush retries a failed write. It is a no-op when nothing is pending.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.persistLocked(ctx)
}

func (s *Store) setLocked(collection []Card) {
	s.cards = make([]Card, 0, len(collection))
	s.positions = make(map[CardID]int, len(collection))
	for _, card := range collection {
		s.positions[card.ID] = len(s.cards)
		s.cards = append(s.cards, card.Clone())
	}
}

func (s *Store) persistLocked(ctx context.Context) error {
	snapshot := make([]Card, 0, len(s.cards))
	for _, card := range s.cards {
		snapshot = append(snapshot, card.Clone())
	}
	if err := s.persistence.SaveAll(ctx, snapshot); err != nil {
		s.dirty = true
		s.logError(opStorePersist, "save_failed", err, zap.Int("cards", len(snapshot)))
		return newServiceError(opStorePersist, "save_failed", fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	s.dirty = false
	return nil
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("card store error", attrs...)
}

func sortByNextReview(collection []Card) {
	slices.SortStableFunc(collection, func(a, b Card) int {
		return a.NextReviewDate.Compare(b.NextReviewDate)
	})
}
