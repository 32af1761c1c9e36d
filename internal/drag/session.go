package drag

import (
	"time"

	"bookcal/internal/models"

	"github.com/google/uuid"
)

// Preview is the candidate drop target shown while dragging.
type Preview struct {
	Date        time.Time `json:"date"`
	Time        string    `json:"time"`
	HasConflict bool      `json:"has_conflict"`
}

// Session is the immutable state of one drag gesture. PickUp creates it,
// every move yields a new value, release or cancel consumes it.
type Session struct {
	ID      uuid.UUID
	Booking models.Booking

	// Ghost anchor: where the booking sat before the drag.
	OriginalDate time.Time
	OriginalTime string

	// Offset is pointer minus the element's top-left corner at pick-up.
	Offset       Point
	TouchStart   Point
	TouchCurrent Point

	Preview    *Preview
	Generation uint64
	StartedAt  time.Time
}

func newSession(b models.Booking, pointer Point, elementTop Point, now time.Time) Session {
	return Session{
		ID:           uuid.New(),
		Booking:      b,
		OriginalDate: b.Date,
		OriginalTime: b.Time,
		Offset:       Point{X: pointer.X - elementTop.X, Y: pointer.Y - elementTop.Y},
		TouchStart:   pointer,
		TouchCurrent: pointer,
		StartedAt:    now,
	}
}

// ElementPosition is where the dragged element's top-left sits for the current pointer.
func (s Session) ElementPosition() Point {
	return Point{X: s.TouchCurrent.X - s.Offset.X, Y: s.TouchCurrent.Y - s.Offset.Y}
}

// Moved returns a copy with the pointer at p.
func (s Session) Moved(p Point) Session {
	s.TouchCurrent = p
	return s
}

// WithPreview returns a copy carrying preview p computed at generation gen.
func (s Session) WithPreview(p Preview, gen uint64) Session {
	s.Preview = &p
	s.Generation = gen
	return s
}

// IsNoOp reports whether the current preview targets the ghost anchor.
func (s Session) IsNoOp() bool {
	if s.Preview == nil {
		return true
	}
	return models.SameDate(s.Preview.Date, s.OriginalDate) && s.Preview.Time == s.OriginalTime
}
