package models

import (
	"time"

	"pcbooking/internal/interval"
)

type Reservation struct {
	ID           int64      `json:"id"`
	StartDate    time.Time  `json:"start_date"`
	DurationDays int        `json:"duration_days"`
	Resource     string     `json:"resource"`
	BookedBy     string     `json:"booked_by"`
	PinHash      string     `json:"-"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	Version      int64      `json:"version"`
}

// EndDate is the last occupied day.
func (r *Reservation) EndDate() time.Time {
	return interval.EndDateInclusive(r.StartDate, r.DurationDays)
}

// Conflict returns the public view of r shown when it blocks another request.
func (r *Reservation) Conflict() ConflictInfo {
	return ConflictInfo{
		ReservationID: r.ID,
		BookedBy:      r.BookedBy,
		StartDate:     interval.FormatDate(r.StartDate),
		EndDate:       interval.FormatDate(r.EndDate()),
		DurationDays:  r.DurationDays,
	}
}

// ConflictInfo carries only what may be disclosed about a blocking reservation.
type ConflictInfo struct {
	ReservationID int64  `json:"reservation_id"`
	BookedBy      string `json:"booked_by"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	DurationDays  int    `json:"duration_days"`
}
