package main

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/oncetrange/memcard/internal/cards"
)

func writeCardList(out io.Writer, collection []cards.Card, now time.Time) {
	for _, card := range collection {
		fmt.Fprintf(out, "%s\n  %s\n  %s\n  %s | Next Review: %s\n",
			card.ID, card.Front, card.Back,
			formatLastReviewed(card.LastReviewed), formatNextReview(card.NextReviewDate, now))
	}
}

func formatLastReviewed(lastReviewed *time.Time) string {
	if lastReviewed == nil {
		return "Not Reviewed"
	}
	return "Last Reviewed: " + lastReviewed.Local().Format("2006-01-02")
}

// formatNextReview renders the distance to next as days above 48 hours,
// hours above 2 hours, minutes while still ahead, hours ago within a day
// and days ago beyond that.
func formatNextReview(next, now time.Time) string {
	remaining := next.Sub(now)
	switch {
	case remaining > 48*time.Hour:
		return fmt.Sprintf("%d days", roundUnits(remaining, 24*time.Hour))
	case remaining > 2*time.Hour:
		return fmt.Sprintf("%d hours", roundUnits(remaining, time.Hour))
	case remaining > 0:
		return fmt.Sprintf("%d minutes", roundUnits(remaining, time.Minute))
	case remaining > -24*time.Hour:
		return fmt.Sprintf("%d hours ago", -roundUnits(remaining, time.Hour))
	default:
		return fmt.Sprintf("%d days ago", -roundUnits(remaining, 24*time.Hour))
	}
}

// roundUnits rounds half toward positive infinity.
func roundUnits(value, unit time.Duration) int64 {
	return int64(math.Floor(float64(value)/float64(unit) + 0.5))
}
