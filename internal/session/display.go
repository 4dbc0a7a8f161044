package session

import "github.com/oncetrange/memcard/internal/cards"

// Face is the side of a card currently shown to the user.
type Face int

const (
	FaceFront Face = iota
	FaceBack
)

// Display is presentation state only. The Controller never reads or writes
// it; the front end flips it and resets it after each recorded outcome.
type Display struct {
	face Face
}

// Face returns the visible side.
func (d *Display) Face() Face {
	return d.face
}

// Flip toggles between front and back.
func (d *Display) Flip() {
	if d.face == FaceFront {
		d.face = FaceBack
		return
	}
	d.face = FaceFront
}

// Reset shows the front again.
func (d *Display) Reset() {
	d.face = FaceFront
}

// Text returns the visible text of card.
func (d *Display) Text(card cards.Card) string {
	if d.face == FaceBack {
		return card.Back
	}
	return card.Front
}
