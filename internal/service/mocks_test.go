package service

import (
	"context"
	"io"
	"testing"
	"time"

	"pcbooking/internal/config"
	"pcbooking/internal/models"
	"pcbooking/internal/pin"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateReservationWithLock(ctx context.Context, r *models.Reservation) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockRepo) ExtendReservationWithLock(ctx context.Context, id, fromVersion int64, newDuration int) error {
	return m.Called(ctx, id, fromVersion, newDuration).Error(0)
}

func (m *mockRepo) GetActiveReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *mockRepo) CancelReservation(ctx context.Context, id int64, pinHash string) (bool, error) {
	args := m.Called(ctx, id, pinHash)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepo) CancelReservationByID(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepo) FindOverlapping(ctx context.Context, resource string, start time.Time, days int, excludeID int64) (*models.Reservation, error) {
	args := m.Called(ctx, resource, start, days, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *mockRepo) GetBookedResources(ctx context.Context, start time.Time, days int) ([]string, error) {
	args := m.Called(ctx, start, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockRepo) ListActiveReservations(ctx context.Context) ([]*models.Reservation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reservation), args.Error(1)
}

func (m *mockRepo) GetReservationsInRange(ctx context.Context, from, to time.Time, includeCancelled bool) ([]*models.Reservation, error) {
	args := m.Called(ctx, from, to, includeCancelled)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reservation), args.Error(1)
}

func (m *mockRepo) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepo) PingContext(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

var testToday = time.Date(2024, 1, 8, 9, 30, 0, 0, time.UTC)

const (
	trustedIP   = "10.1.2.3"
	untrustedIP = "192.168.50.7"
)

func testHasher(t *testing.T) pin.Hasher {
	t.Helper()
	h, err := pin.NewHMACHasher("test-key")
	require.NoError(t, err)
	return h
}

func testOptions() Options {
	return Options{
		Booking: config.BookingConfig{
			Resources:      append([]string(nil), config.DefaultResources...),
			MaxInitialDays: config.DefaultMaxInitialDays,
			MaxTotalDays:   config.DefaultMaxTotalDays,
			ExtendMinDays:  config.DefaultExtendMinDays,
			ExtendMaxDays:  config.DefaultExtendMaxDays,
		},
		Pin: config.PinConfig{
			Pattern:       config.DefaultPinPattern,
			MaxAttempts:   5,
			AttemptWindow: 60,
		},
		Clock: fixedClock{now: testToday},
	}
}

func testTrust(t *testing.T, code string) *TrustPolicy {
	t.Helper()
	p, err := NewTrustPolicy(config.TrustConfig{Origins: []string{"10.1.0.0/16"}, BypassCode: code})
	require.NoError(t, err)
	return p
}

func newTestService(t *testing.T, repo *mockRepo, opts Options) *ReservationService {
	t.Helper()
	logger := zerolog.New(io.Discard)
	svc, err := NewReservationService(repo, testHasher(t), testTrust(t, ""), nil, nil, opts, &logger)
	require.NoError(t, err)
	return svc
}
