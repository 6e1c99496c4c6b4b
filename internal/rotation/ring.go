// Package rotation implements the turn-order sequencer: a fixed ring of
// seat IDs with a movable cursor. The seat list is never mutated by
// cursor movement; joins and leaves go through Rebuild.
package rotation

import "errors"

// ErrNoQualifyingSeat is returned by AdvanceUntil when no seat satisfies
// the predicate after a full wrap of the ring.
var ErrNoQualifyingSeat = errors.New("rotation: no qualifying seat")

// ErrEmptyRing is returned when constructing or advancing a ring with no seats.
var ErrEmptyRing = errors.New("rotation: ring has no seats")

// Ring is a fixed-size rotation over seat IDs with a cursor.
type Ring struct {
	seats  []string
	cursor int
}

// New creates a ring over the given seats with the cursor at the first seat.
func New(seats []string) (*Ring, error) {
	if len(seats) == 0 {
		return nil, ErrEmptyRing
	}
	r := &Ring{seats: make([]string, len(seats))}
	copy(r.seats, seats)
	return r, nil
}

// Len returns the number of seats.
func (r *Ring) Len() int {
	return len(r.seats)
}

// Cursor returns the current cursor index.
func (r *Ring) Cursor() int {
	return r.cursor
}

// Current returns the seat ID at the cursor.
func (r *Ring) Current() string {
	return r.seats[r.cursor]
}

// Seats returns a copy of the seat list in ring order.
func (r *Ring) Seats() []string {
	out := make([]string, len(r.seats))
	copy(out, r.seats)
	return out
}

// Index returns the position of a seat ID, or -1 if absent.
func (r *Ring) Index(seat string) int {
	for i, s := range r.seats {
		if s == seat {
			return i
		}
	}
	return -1
}

// MoveTo places the cursor on the given seat. Returns false if the seat
// is not in the ring.
func (r *Ring) MoveTo(seat string) bool {
	if i := r.Index(seat); i >= 0 {
		r.cursor = i
		return true
	}
	return false
}

// Advance moves the cursor n seats forward, wrapping modulo the seat count.
func (r *Ring) Advance(n int) {
	r.cursor = (r.cursor + n%len(r.seats) + len(r.seats)) % len(r.seats)
}

// AdvanceUntil scans forward seat-by-seat starting after the cursor,
// wrapping around once; the starting seat itself is scanned last. The
// cursor lands on the first seat satisfying pred. If no seat qualifies
// the cursor is unchanged and ErrNoQualifyingSeat is returned.
func (r *Ring) AdvanceUntil(pred func(seat string) bool) error {
	n := len(r.seats)
	for i := 1; i <= n; i++ {
		idx := (r.cursor + i) % n
		if pred(r.seats[idx]) {
			r.cursor = idx
			return nil
		}
	}
	return ErrNoQualifyingSeat
}

// Rebuild replaces the seat list after a join or leave. The cursor stays
// on its current seat when that seat survives; otherwise it moves to the
// nearest surviving seat that followed it in the old order, or seat 0.
func (r *Ring) Rebuild(seats []string) error {
	if len(seats) == 0 {
		return ErrEmptyRing
	}
	next := make([]string, len(seats))
	copy(next, seats)

	target := 0
	// Walk the old ring from the cursor looking for a seat that survives.
	for i := 0; i < len(r.seats); i++ {
		old := r.seats[(r.cursor+i)%len(r.seats)]
		if idx := indexOf(next, old); idx >= 0 {
			target = idx
			break
		}
	}

	r.seats = next
	r.cursor = target
	return nil
}

func indexOf(seats []string, seat string) int {
	for i, s := range seats {
		if s == seat {
			return i
		}
	}
	return -1
}
