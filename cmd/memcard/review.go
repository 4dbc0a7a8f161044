package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oncetrange/memcard/internal/cards"
	"github.com/oncetrange/memcard/internal/session"
)

const reviewPrompt = "(f)lip  (y) recalled  (n) forgot  (q)uit > "

// runReview drives one session from line-oriented input. End of input
// abandons the session like q.
func runReview(ctx context.Context, controller *session.Controller, in io.Reader, out io.Writer) error {
	if err := controller.Start(); err != nil {
		var insufficient *session.InsufficientCardsError
		if errors.As(err, &insufficient) {
			fmt.Fprintf(out, "Not enough cards due for review: %d available, %d required.\n",
				insufficient.Available, insufficient.Required)
			return nil
		}
		return err
	}

	scanner := bufio.NewScanner(in)
	var display session.Display
	for controller.State() == session.Reviewing {
		card, err := controller.Current()
		if err != nil {
			if controller.State() == session.Complete {
				break
			}
			return err
		}

		display.Reset()
		position, total := controller.Progress()
		fmt.Fprintf(out, "\n[%d/%d] %s\n", position+1, total, display.Text(card))

		outcome, ok := promptOutcome(scanner, out, &display, card)
		if !ok {
			if err := controller.Abandon(); err != nil {
				return err
			}
			fmt.Fprintln(out, "Session abandoned.")
			return nil
		}

		step, err := controller.RecordOutcome(ctx, outcome)
		if err != nil {
			if !errors.Is(err, cards.ErrPersistence) {
				return err
			}
			fmt.Fprintf(out, "warning: %v\n", err)
		}
		if step.Requeued {
			fmt.Fprintln(out, "It will come back later in this session.")
		}
	}

	summary, err := controller.Summary()
	if err != nil {
		return err
	}
	writeSummary(out, summary)
	return controller.Acknowledge()
}

// promptOutcome reads commands until the user judges the card. It reports
// false when the user quits or input ends.
func promptOutcome(scanner *bufio.Scanner, out io.Writer, display *session.Display, card cards.Card) (cards.Outcome, bool) {
	for {
		fmt.Fprint(out, reviewPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return 0, false
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "f", "":
			display.Flip()
			fmt.Fprintln(out, display.Text(card))
		case "y":
			return cards.Recalled, true
		case "n":
			return cards.Forgot, true
		case "q":
			return 0, false
		default:
			fmt.Fprintln(out, "unknown command")
		}
	}
}

func writeSummary(out io.Writer, summary session.Summary) {
	fmt.Fprintf(out, "\nSession complete: %d reviewed, %d recalled, %d forgot in %s.\n",
		summary.Total, summary.Recalled, summary.Forgot, summary.Elapsed.Round(time.Second))
	if summary.HasAverage {
		fmt.Fprintf(out, "Average %s per card.\n", summary.AveragePerCard.Round(100*time.Millisecond))
	}
}
