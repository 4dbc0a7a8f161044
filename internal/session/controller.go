package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oncetrange/memcard/internal/cards"
	"github.com/oncetrange/memcard/internal/scheduler"
	"go.uber.org/zap"
)

// State is a step of the session lifecycle.
type State int

const (
	Idle State = iota
	Selecting
	Reviewing
	Complete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case Reviewing:
		return "reviewing"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrSessionActive indicates Start was called outside Idle.
	ErrSessionActive = errors.New("session: a session is already active")
	// ErrNotReviewing indicates a review action outside the Reviewing state.
	ErrNotReviewing = errors.New("session: no review in progress")
	// ErrNotComplete indicates the summary was requested before completion.
	ErrNotComplete = errors.New("session: session is not complete")
	// ErrInvalidOutcome indicates an outcome other than Recalled or Forgot.
	ErrInvalidOutcome = errors.New("session: invalid outcome")

	errMissingStore  = errors.New("session: card store is required")
	errMissingRandom = errors.New("session: random source is required")
)

// CardSource is the part of the card store a session needs.
type CardSource interface {
	DueSet(now time.Time) []cards.Card
	Get(id cards.CardID) (cards.Card, error)
	SaveReview(ctx context.Context, card cards.Card) error
}

// ControllerConfig describes the collaborators of a Controller.
type ControllerConfig struct {
	Store   CardSource
	Clock   func() time.Time
	Random  Random
	Options SelectOptions
	Logger  *zap.Logger
}

// Summary describes a completed session.
type Summary struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Elapsed     time.Duration
	Total       int
	Recalled    int
	Forgot      int
	// AveragePerCard is meaningful only when HasAverage is true.
	AveragePerCard time.Duration
	HasAverage     bool
}

// Step reports the effect of one recorded outcome.
type Step struct {
	Card            cards.Card
	Outcome         cards.Outcome
	RequeuePosition int
	Requeued        bool
	Complete        bool
}

// Controller drives one review session at a time:
// Idle -> Selecting -> Reviewing -> Complete -> Idle.
type Controller struct {
	store   CardSource
	clock   func() time.Time
	random  Random
	options SelectOptions
	logger  *zap.Logger

	state     State
	queue     *Queue
	startedAt time.Time
	total     int
	forgot    int
	summary   Summary
}

// NewController constructs an idle Controller.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Random == nil {
		return nil, errMissingRandom
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:   cfg.Store,
		clock:   clock,
		random:  cfg.Random,
		options: cfg.Options.withDefaults(),
		logger:  logger,
		state:   Idle,
	}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Progress returns the cursor and the current queue length.
func (c *Controller) Progress() (int, int) {
	if c.queue == nil {
		return 0, 0
	}
	return c.queue.Position(), c.queue.Len()
}

// Start selects a batch of due cards and begins reviewing. When too few cards
// are due the controller stays Idle and the returned error matches
// ErrInsufficientCards.
func (c *Controller) Start() error {
	if c.state != Idle {
		return ErrSessionActive
	}
	c.state = Selecting

	now := c.clock().UTC()
	queue, err := Select(c.store.DueSet(now), c.options, c.random)
	if err != nil {
		c.state = Idle
		c.logger.Info("review session not started", zap.Error(err))
		return err
	}

	c.queue = queue
	c.startedAt = now
	c.total = 0
	c.forgot = 0
	c.summary = Summary{}
	c.state = Reviewing
	c.logger.Debug("review session started", zap.Int("cards", queue.Len()))
	c.settle()
	return nil
}

// Current returns the card under the cursor.
func (c *Controller) Current() (cards.Card, error) {
	if c.state != Reviewing {
		return cards.Card{}, ErrNotReviewing
	}
	for !c.queue.Done() {
		id, _ := c.queue.Current()
		card, err := c.store.Get(id)
		if err == nil {
			return card, nil
		}
		c.skipMissing(id, err)
	}
	c.complete()
	return cards.Card{}, ErrNotReviewing
}

// RecordOutcome judges the current card: it updates the counters, reschedules
// the card, requeues it on Forgot, persists it and advances the cursor. A
// persistence failure still completes the step; the returned error then
// matches cards.ErrPersistence. A card deleted since it was shown is skipped
// without recording anything.
func (c *Controller) RecordOutcome(ctx context.Context, outcome cards.Outcome) (Step, error) {
	if !outcome.IsValid() {
		return Step{}, fmt.Errorf("%w: %v", ErrInvalidOutcome, outcome)
	}
	if c.state != Reviewing {
		return Step{}, ErrNotReviewing
	}
	id, _ := c.queue.Current()
	card, err := c.store.Get(id)
	if err != nil {
		// deleted after it was shown: drop the judgement
		c.skipMissing(id, err)
		c.settle()
		return Step{Complete: c.state == Complete}, nil
	}

	c.total++
	if !outcome.Recalled() {
		c.forgot++
	}

	now := c.clock().UTC()
	updated := scheduler.Review(card, outcome, now)
	step := Step{Card: updated, Outcome: outcome}
	if !outcome.Recalled() {
		step.RequeuePosition = c.queue.RequeueAfterForgot(c.queue.Position(), card.ID)
		step.Requeued = true
	}

	var persistErr error
	if err := c.store.SaveReview(ctx, updated); err != nil {
		if errors.Is(err, cards.ErrNotFound) {
			c.logger.Debug("reviewed card was deleted", zap.String("card_id", card.ID.String()))
		} else {
			c.logger.Error("failed to persist reviewed card",
				zap.String("card_id", card.ID.String()),
				zap.Error(err))
			persistErr = fmt.Errorf("session: persist card %s: %w", card.ID, err)
		}
	}

	c.queue.Advance()
	c.settle()
	step.Complete = c.state == Complete
	return step, persistErr
}

// Summary returns the metrics of a completed session.
func (c *Controller) Summary() (Summary, error) {
	if c.state != Complete {
		return Summary{}, ErrNotComplete
	}
	return c.summary, nil
}

// Acknowledge dismisses a completed session and returns to Idle.
func (c *Controller) Acknowledge() error {
	if c.state != Complete {
		return ErrNotComplete
	}
	c.reset()
	return nil
}

// Abandon drops an in-progress session. Cards judged so far stay persisted;
// the others are untouched.
func (c *Controller) Abandon() error {
	if c.state != Reviewing {
		return ErrNotReviewing
	}
	c.logger.Info("review session abandoned",
		zap.Int("outcomes", c.total),
		zap.Int("remaining", c.queue.Len()-c.queue.Position()))
	c.reset()
	return nil
}

// settle skips entries whose cards were deleted and completes the session
// once the cursor passes the end.
func (c *Controller) settle() {
	for !c.queue.Done() {
		id, _ := c.queue.Current()
		_, err := c.store.Get(id)
		if err == nil {
			return
		}
		c.skipMissing(id, err)
	}
	c.complete()
}

func (c *Controller) skipMissing(id cards.CardID, err error) {
	c.logger.Debug("skipping card missing from store", zap.String("card_id", id.String()), zap.Error(err))
	c.queue.Advance()
}

func (c *Controller) complete() {
	if c.state != Reviewing {
		return
	}
	completedAt := c.clock().UTC()
	summary := Summary{
		StartedAt:   c.startedAt,
		CompletedAt: completedAt,
		Elapsed:     completedAt.Sub(c.startedAt),
		Total:       c.total,
		Recalled:    c.total - c.forgot,
		Forgot:      c.forgot,
	}
	if summary.Total > 0 {
		summary.AveragePerCard = summary.Elapsed / time.Duration(summary.Total)
		summary.HasAverage = true
	}
	c.summary = summary
	c.state = Complete
	c.logger.Info("review session complete",
		zap.Duration("elapsed", summary.Elapsed),
		zap.Int("outcomes", summary.Total),
		zap.Int("recalled", summary.Recalled),
		zap.Int("forgot", summary.Forgot),
		zap.Duration("average_per_card", summary.AveragePerCard))
}

func (c *Controller) reset() {
	c.state = Idle
	c.queue = nil
	c.startedAt = time.Time{}
	c.total = 0
	c.forgot = 0
	c.summary = Summary{}
}
