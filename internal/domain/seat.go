package domain

import "fmt"

// Seat identifies one seat in an auditorium by row and number.
type Seat struct {
	Row    int `json:"row"`
	Number int `json:"number"`
}

// NewSeat validates row and number are positive.
func NewSeat(row, number int) (Seat, error) {
	if row <= 0 || number <= 0 {
		return Seat{}, fmt.Errorf("%w: seat row and number must be positive", ErrValidation)
	}
	return Seat{Row: row, Number: number}, nil
}

// Label renders a human-readable seat label like "R3-S7".
func (s Seat) Label() string {
	return fmt.Sprintf("R%d-S%d", s.Row, s.Number)
}

// SeatLabels renders a slice of seats as labels, preserving order.
func SeatLabels(seats []Seat) []string {
	labels := make([]string, len(seats))
	for i, s := range seats {
		labels[i] = s.Label()
	}
	return labels
}
