package session

import (
	"errors"
	"fmt"
	"slices"

	"github.com/oncetrange/memcard/internal/cards"
)

const (
	// DefaultLimit caps how many due cards enter one session.
	DefaultLimit = 20
	// DefaultMinimumRequired is the smallest batch worth starting a session for.
	DefaultMinimumRequired = 10

	requeueMinOffset = 5
	requeueMaxOffset = 10
)

// ErrInsufficientCards indicates that too few cards are due to start a session.
var ErrInsufficientCards = errors.New("session: insufficient due cards")

// InsufficientCardsError reports how many cards were available against the minimum.
type InsufficientCardsError struct {
	Available int
	Required  int
}

func (e *InsufficientCardsError) Error() string {
	return fmt.Sprintf("%v: %d available, %d required", ErrInsufficientCards, e.Available, e.Required)
}

// Is makes errors.Is(err, ErrInsufficientCards) match.
func (e *InsufficientCardsError) Is(target error) bool {
	return target == ErrInsufficientCards
}

// Random is the uniform random source used for shuffling and requeue offsets.
// *math/rand.Rand satisfies it.
type Random interface {
	Intn(n int) int
}

// SelectOptions bounds a batch selection. Zero values take the defaults.
type SelectOptions struct {
	Limit           int
	MinimumRequired int
}

func (o SelectOptions) withDefaults() SelectOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.MinimumRequired <= 0 {
		o.MinimumRequired = DefaultMinimumRequired
	}
	return o
}

// Queue is the working order of one review pass. It holds card ids only;
// the store keeps ownership of the cards.
type Queue struct {
	order  []cards.CardID
	cursor int
	random Random
}

// Select truncates candidates to the limit, enforces the minimum and returns
// a uniformly shuffled queue of exactly those cards.
func Select(candidates []cards.Card, opts SelectOptions, random Random) (*Queue, error) {
	opts = opts.withDefaults()
	batch := candidates
	if len(batch) > opts.Limit {
		batch = batch[:opts.Limit]
	}
	if len(batch) < opts.MinimumRequired {
		return nil, &InsufficientCardsError{Available: len(batch), Required: opts.MinimumRequired}
	}

	order := make([]cards.CardID, 0, len(batch))
	for _, card := range batch {
		order = append(order, card.ID)
	}
	shuffle(order, random)
	return &Queue{order: order, random: random}, nil
}

// Fisher–Yates.
func shuffle(order []cards.CardID, random Random) {
	for i := len(order) - 1; i > 0; i-- {
		j := random.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
}

// Len returns the current queue length, including requeued entries.
func (q *Queue) Len() int {
	return len(q.order)
}

// Position returns the cursor.
func (q *Queue) Position() int {
	return q.cursor
}

// Done reports whether the cursor has passed the last entry.
func (q *Queue) Done() bool {
	return q.cursor >= len(q.order)
}

// Current returns the card id under the cursor.
func (q *Queue) Current() (cards.CardID, bool) {
	if q.Done() {
		return "", false
	}
	return q.order[q.cursor], true
}

// Advance moves the cursor forward by one.
func (q *Queue) Advance() {
	if q.cursor < len(q.order) {
		q.cursor++
	}
}

// RequeueAfterForgot inserts id between 5 and 10 positions after
// currentIndex, clamped to the end of the queue, and returns the position used.
func (q *Queue) RequeueAfterForgot(currentIndex int, id cards.CardID) int {
	offset := requeueMinOffset + q.random.Intn(requeueMaxOffset-requeueMinOffset+1)
	position := min(currentIndex+offset, len(q.order))
	q.order = slices.Insert(q.order, position, id)
	return position
}

// Order returns a copy of the working order.
func (q *Queue) Order() []cards.CardID {
	return slices.Clone(q.order)
}
