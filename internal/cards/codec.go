package cards

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// maxUnixMillis bounds numeric timestamps to what UnixNano can represent.
const maxUnixMillis = math.MaxInt64 / int64(time.Millisecond)

var (
	_ json.Marshaler   = Card{}
	_ json.Unmarshaler = (*Card)(nil)
)

type cardPayload struct {
	ID             string           `json:"id"`
	Front          string           `json:"front"`
	Back           string           `json:"back"`
	Difficulty     int              `json:"difficulty"`
	LastReviewed   *string          `json:"lastReviewed"`
	NextReviewDate string           `json:"nextReviewDate"`
	History        []historyPayload `json:"history"`
}

type historyPayload struct {
	Date     string `json:"date"`
	Recalled bool   `json:"recalled"`
}

// incomingCard also accepts the legacy browser client payload, which used
// numeric ids, millisecond timestamps, "fimilarity" and "known".
type incomingCard struct {
	ID             json.RawMessage   `json:"id"`
	Front          string            `json:"front"`
	Back           string            `json:"back"`
	Difficulty     *json.Number      `json:"difficulty"`
	Fimilarity     *json.Number      `json:"fimilarity"`
	LastReviewed   json.RawMessage   `json:"lastReviewed"`
	NextReviewDate json.RawMessage   `json:"nextReviewDate"`
	History        []incomingHistory `json:"history"`
}

type incomingHistory struct {
	Date     json.RawMessage `json:"date"`
	Recalled *bool           `json:"recalled"`
	Known    *bool           `json:"known"`
}

// MarshalJSON encodes the card with RFC 3339 nanosecond timestamps.
func (c Card) MarshalJSON() ([]byte, error) {
	payload := cardPayload{
		ID:             c.ID.String(),
		Front:          c.Front,
		Back:           c.Back,
		Difficulty:     c.Difficulty,
		NextReviewDate: formatTime(c.NextReviewDate),
		History:        make([]historyPayload, 0, len(c.History)),
	}
	if c.LastReviewed != nil {
		formatted := formatTime(*c.LastReviewed)
		payload.LastReviewed = &formatted
	}
	for _, entry := range c.History {
		payload.History = append(payload.History, historyPayload{
			Date:     formatTime(entry.Date),
			Recalled: entry.Recalled,
		})
	}
	return json.Marshal(payload)
}

// UnmarshalJSON decodes current and legacy card payloads.
func (c *Card) UnmarshalJSON(data []byte) error {
	var incoming incomingCard
	if err := json.Unmarshal(data, &incoming); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	id, err := decodeID(incoming.ID)
	if err != nil {
		return err
	}

	difficultyNumber := incoming.Difficulty
	if difficultyNumber == nil {
		difficultyNumber = incoming.Fimilarity
	}
	difficulty, err := decodeDifficulty(difficultyNumber)
	if err != nil {
		return err
	}

	nextReview, present, err := decodeTime(incoming.NextReviewDate)
	if err != nil {
		return fmt.Errorf("nextReviewDate: %w", err)
	}
	if !present {
		return fmt.Errorf("%w: nextReviewDate is required", ErrValidation)
	}

	var lastReviewed *time.Time
	reviewedAt, present, err := decodeTime(incoming.LastReviewed)
	if err != nil {
		return fmt.Errorf("lastReviewed: %w", err)
	}
	if present {
		lastReviewed = &reviewedAt
	}

	history := make([]HistoryEntry, 0, len(incoming.History))
	for index, entry := range incoming.History {
		date, present, err := decodeTime(entry.Date)
		if err != nil {
			return fmt.Errorf("history[%d].date: %w", index, err)
		}
		if !present {
			return fmt.Errorf("%w: history[%d].date is required", ErrValidation, index)
		}
		recalled := false
		switch {
		case entry.Recalled != nil:
			recalled = *entry.Recalled
		case entry.Known != nil:
			recalled = *entry.Known
		}
		history = append(history, HistoryEntry{Date: date, Recalled: recalled})
	}

	*c = Card{
		ID:             id,
		Front:          incoming.Front,
		Back:           incoming.Back,
		Difficulty:     difficulty,
		LastReviewed:   lastReviewed,
		NextReviewDate: nextReview,
		History:        history,
	}
	return nil
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func decodeID(raw json.RawMessage) (CardID, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", fmt.Errorf("%w: id is required", ErrValidation)
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return "", fmt.Errorf("%w: id: %v", ErrValidation, err)
		}
		return NewCardID(text)
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return "", fmt.Errorf("%w: id: %v", ErrValidation, err)
	}
	return NewCardID(number.String())
}

func decodeDifficulty(number *json.Number) (int, error) {
	if number == nil {
		return 0, nil
	}
	if whole, err := number.Int64(); err == nil {
		return int(whole), nil
	}
	fractional, err := number.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: difficulty %q", ErrValidation, number.String())
	}
	return int(math.Floor(fractional)), nil
}

// decodeTime accepts RFC 3339 strings or Unix milliseconds. The boolean
// reports whether a non-null value was present.
func decodeTime(raw json.RawMessage) (time.Time, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return time.Time{}, false, nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return time.Time{}, false, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(text))
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return parsed.UTC(), true, nil
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if millis, err := number.Int64(); err == nil {
		if millis > maxUnixMillis || millis < -maxUnixMillis {
			return time.Time{}, false, fmt.Errorf("%w: timestamp %s out of range", ErrValidation, number.String())
		}
		return time.UnixMilli(millis).UTC(), true, nil
	}
	fractional, err := number.Float64()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: timestamp %q", ErrValidation, number.String())
	}
	if math.Abs(fractional) >= float64(maxUnixMillis) {
		return time.Time{}, false, fmt.Errorf("%w: timestamp %s out of range", ErrValidation, number.String())
	}
	return time.Unix(0, int64(fractional*float64(time.Millisecond))).UTC(), true, nil
}
