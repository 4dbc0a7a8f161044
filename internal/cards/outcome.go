package cards

import (
	"encoding"
	"fmt"
)

// Outcome is the user's judgement of a single review.
type Outcome int

const (
	Forgot Outcome = iota + 1
	Recalled
)

var (
	outcomeNames  = [...]string{Forgot: "forgot", Recalled: "recalled"}
	outcomeByName = map[string]Outcome{
		"forgot":   Forgot,
		"recalled": Recalled,
	}
)

var (
	_ fmt.Stringer             = Outcome(0)
	_ encoding.TextMarshaler   = Outcome(0)
	_ encoding.TextUnmarshaler = (*Outcome)(nil)
)

// OutcomeOf maps a recalled flag onto an Outcome.
func OutcomeOf(recalled bool) Outcome {
	if recalled {
		return Recalled
	}
	return Forgot
}

// IsValid reports whether o is one of the two outcomes.
func (o Outcome) IsValid() bool {
	return o == Forgot || o == Recalled
}

// Recalled reports whether the card was remembered.
func (o Outcome) Recalled() bool {
	return o == Recalled
}

func (o Outcome) String() string {
	if o.IsValid() {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	if !o.IsValid() {
		return nil, fmt.Errorf("%w: outcome %d", ErrValidation, int(o))
	}
	return []byte(outcomeNames[o]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	value, ok := outcomeByName[string(text)]
	if !ok {
		return fmt.Errorf("%w: outcome %q", ErrValidation, text)
	}
	*o = value
	return nil
}
