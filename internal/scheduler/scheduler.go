// Package scheduler converts a review outcome into a card's next scheduling state.
//
// The rule set is deliberately small:
//
//	recalled: next = now + 6h * 2^difficulty; difficulty = d+1 if d >= 0 else 0
//	forgot:   next unchanged; difficulty = d/2 if d >= 1, d-1 if d > -3, else d
//
// Every outcome appends one history entry. Only a recalled outcome moves
// LastReviewed and NextReviewDate.
package scheduler

import (
	"math"
	"time"

	"github.com/oncetrange/memcard/internal/cards"
)

const (
	// BaseInterval is the interval granted to a recalled card at difficulty zero.
	BaseInterval = 6 * time.Hour
	// DifficultyFloor is the level below which a forgotten card stops losing difficulty.
	DifficultyFloor = -3

	maxInterval = time.Duration(math.MaxInt64)
	minInterval = time.Nanosecond
)

// Review applies outcome to card at now and returns the updated card. The
// input card is not modified.
func Review(card cards.Card, outcome cards.Outcome, now time.Time) cards.Card {
	next := card.Clone()
	next.History = append(next.History, cards.HistoryEntry{Date: now, Recalled: outcome.Recalled()})

	if outcome.Recalled() {
		reviewedAt := now
		next.LastReviewed = &reviewedAt
		next.NextReviewDate = now.Add(Interval(card.Difficulty))
		next.Difficulty = recalledDifficulty(card.Difficulty)
		return next
	}

	next.Difficulty = forgottenDifficulty(card.Difficulty)
	return next
}

// Interval returns 6h * 2^difficulty, clamped to the representable range
// and never below one nanosecond.
func Interval(difficulty int) time.Duration {
	scaled := math.Ldexp(float64(BaseInterval), difficulty)
	if scaled >= float64(maxInterval) {
		return maxInterval
	}
	if scaled < float64(minInterval) {
		return minInterval
	}
	return time.Duration(scaled)
}

func recalledDifficulty(difficulty int) int {
	if difficulty >= 0 {
		return difficulty + 1
	}
	return 0
}

func forgottenDifficulty(difficulty int) int {
	switch {
	case difficulty >= 1:
		return difficulty / 2
	case difficulty > DifficultyFloor:
		return difficulty - 1
	default:
		return difficulty
	}
}
