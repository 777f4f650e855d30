package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"pcbooking/internal/database"
	"pcbooking/internal/domain"
	"pcbooking/internal/events"
	"pcbooking/internal/pin"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newSQLiteService(t *testing.T, bus *events.EventBus) *ReservationService {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc, err := NewReservationService(db, pin.NewBcryptHasher(bcrypt.MinCost), testTrust(t, ""), bus, nil, testOptions(), &logger)
	require.NoError(t, err)
	return svc
}

func TestBookingLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	bus := events.NewEventBus()
	var seen []string
	bus.SubscribeAll(func(e *events.Event) error {
		seen = append(seen, e.Type)
		return nil
	})
	svc := newSQLiteService(t, bus)
	from := Requester{Origin: untrustedIP}

	r, err := svc.Create(ctx, CreateRequest{
		StartDate: "2024-01-10", DurationDays: 3, Resource: "PC 094", BookedBy: "Ana", PIN: "1234",
	}, from)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.ID)

	available, err := svc.FindAvailable(ctx, date("2024-01-11"), 1)
	require.NoError(t, err)
	assert.NotContains(t, available, "PC 094")
	assert.Len(t, available, 4)

	for _, probe := range []struct {
		start string
		days  int
		free  bool
	}{
		{"2024-01-12", 1, false},
		{"2024-01-05", 10, false},
		{"2024-01-13", 2, true},
	} {
		available, err := svc.FindAvailable(ctx, date(probe.start), probe.days)
		require.NoError(t, err)
		assert.Equal(t, probe.free, contains(available, "PC 094"), "%s+%d", probe.start, probe.days)
	}

	_, err = svc.Create(ctx, CreateRequest{
		StartDate: "2024-01-12", DurationDays: 2, Resource: "PC 094", BookedBy: "Bia", PIN: "5678",
	}, from)
	var conflict *domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "Ana", conflict.Blocking.BookedBy)
	assert.Equal(t, "2024-01-10", conflict.Blocking.StartDate)
	assert.Equal(t, 3, conflict.Blocking.DurationDays)

	assert.True(t, errors.Is(svc.Cancel(ctx, 1, "0000", from), domain.ErrUnauthorized))
	still, err := svc.FindAvailable(ctx, date("2024-01-11"), 1)
	require.NoError(t, err)
	assert.NotContains(t, still, "PC 094")

	require.NoError(t, svc.Cancel(ctx, 1, "1234", from))
	assert.True(t, errors.Is(svc.Cancel(ctx, 1, "1234", from), domain.ErrUnauthorized))

	restored, err := svc.FindAvailable(ctx, date("2024-01-11"), 1)
	require.NoError(t, err)
	assert.Contains(t, restored, "PC 094")

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.Equal(t, []string{events.EventReservationCreated, events.EventReservationCancelled}, seen)
}

func TestExtendScenario(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t, nil)
	from := Requester{Origin: untrustedIP}

	first, err := svc.Create(ctx, CreateRequest{StartDate: "2024-01-10", DurationDays: 3, Resource: "PC 083", BookedBy: "Ana", PIN: "1234"}, from)
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateRequest{StartDate: "2024-01-16", DurationDays: 2, Resource: "PC 083", BookedBy: "Bia", PIN: "5678"}, from)
	require.NoError(t, err)

	n, err := svc.Extend(ctx, first.ID, 3, "1234", from)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	// 2024-01-10 + 7 days reaches 2024-01-16
	_, err = svc.Extend(ctx, first.ID, 1, "1234", from)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, 6, list[0].DurationDays)

	require.NoError(t, svc.Cancel(ctx, first.ID, "1234", from))
	_, err = svc.Extend(ctx, first.ID, 1, "1234", from)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestTrustedScenario(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t, nil)
	lab := Requester{Origin: trustedIP}

	r, err := svc.Create(ctx, CreateRequest{StartDate: "2024-01-10", DurationDays: 1, Resource: "PC 085", BookedBy: "Lab"}, lab)
	require.NoError(t, err)

	// placeholder hash cannot be matched by any PIN
	assert.True(t, errors.Is(svc.Cancel(ctx, r.ID, "1234", Requester{Origin: untrustedIP}), domain.ErrUnauthorized))

	require.NoError(t, svc.Cancel(ctx, r.ID, "", lab))
	assert.True(t, errors.Is(svc.Cancel(ctx, r.ID, "", lab), domain.ErrNotFound))
}

func TestConcurrentCreateThroughService(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t, nil)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, lost int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, CreateRequest{StartDate: "2024-01-20", DurationDays: 5, Resource: "PC 084", BookedBy: "Ana", PIN: "1234"}, Requester{Origin: untrustedIP})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrConflict):
				lost++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, lost)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
