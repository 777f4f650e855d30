package domain

import (
	"context"
	"time"

	"pcbooking/internal/models"
)

// ReservationRepository is the persistence contract of the booking core.
// The *WithLock methods run their conflict check and write in one transaction.
type ReservationRepository interface {
	CreateReservationWithLock(ctx context.Context, r *models.Reservation) error
	ExtendReservationWithLock(ctx context.Context, id, fromVersion int64, newDuration int) error
	GetActiveReservation(ctx context.Context, id int64) (*models.Reservation, error)
	CancelReservation(ctx context.Context, id int64, pinHash string) (bool, error)
	CancelReservationByID(ctx context.Context, id int64) (bool, error)
	FindOverlapping(ctx context.Context, resource string, start time.Time, days int, excludeID int64) (*models.Reservation, error)
	GetBookedResources(ctx context.Context, start time.Time, days int) ([]string, error)
	ListActiveReservations(ctx context.Context) ([]*models.Reservation, error)
	GetReservationsInRange(ctx context.Context, from, to time.Time, includeCancelled bool) ([]*models.Reservation, error)
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	PingContext(ctx context.Context) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// AttemptLimiter counts failed PIN attempts per key inside a window.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Reset(ctx context.Context, key string) error
}

type Clock interface {
	Now() time.Time
}
