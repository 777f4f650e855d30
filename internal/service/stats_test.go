package service

import (
	"context"
	"errors"
	"testing"

	"pcbooking/internal/domain"
	"pcbooking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStats_Week(t *testing.T) {
	repo := new(mockRepo)
	svc := newTestService(t, repo, testOptions())

	// window is 2024-01-02 .. 2024-01-08
	list := []*models.Reservation{
		{ID: 1, StartDate: date("2023-12-30"), DurationDays: 5, Resource: "PC 094"}, // 01-02..01-03 inside
		{ID: 2, StartDate: date("2024-01-03"), DurationDays: 2, Resource: "PC 095"},
		{ID: 3, StartDate: date("2024-01-05"), DurationDays: 1, Resource: "PC 095"},
		{ID: 4, StartDate: date("2024-01-08"), DurationDays: 4, Resource: "PC 083"},
	}
	repo.On("GetReservationsInRange", mock.Anything, date("2024-01-02"), date("2024-01-08"), false).Return(list, nil).Once()

	stats, err := svc.Stats(context.Background(), "week")
	require.NoError(t, err)

	assert.Equal(t, "2024-01-02", stats.From)
	assert.Equal(t, "2024-01-08", stats.To)
	require.Len(t, stats.Buckets, 7)

	jan3 := stats.Buckets[1]
	assert.Equal(t, "2024-01-03", jan3.Date)
	assert.Equal(t, 2, jan3.ActiveReservations)
	assert.Equal(t, 2, jan3.DistinctResources)
	assert.Equal(t, 2, jan3.ReservedDays)

	last := stats.Buckets[6]
	assert.Equal(t, 1, last.ActiveReservations)
	assert.Equal(t, 1, last.ReservedDays)

	// reservation 1 started before the window
	assert.Equal(t, 3, stats.Summary.TotalReservations)
	assert.Equal(t, 7, stats.Summary.TotalDays)
	assert.Equal(t, 2.3, stats.Summary.AverageDays)
	assert.Equal(t, 2, stats.Summary.ResourcesUsed)

	require.NotNil(t, stats.MostUsed)
	assert.Equal(t, "PC 095", stats.MostUsed.Resource)
	assert.Equal(t, 2, stats.MostUsed.Reservations)
	assert.Equal(t, 3, stats.MostUsed.TotalDays)
}

func TestStats_BucketSizes(t *testing.T) {
	tests := []struct {
		period  string
		buckets int
		first   int
		last    int
	}{
		{"month", 30, 1, 1},
		{"semester", 26, 7, 5}, // 180 = 25*7 + 5
		{"year", 25, 15, 5},    // 365 = 24*15 + 5
		{" YEAR ", 25, 15, 5},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			repo := new(mockRepo)
			svc := newTestService(t, repo, testOptions())
			repo.On("GetReservationsInRange", mock.Anything, mock.Anything, mock.Anything, false).Return([]*models.Reservation{}, nil).Once()

			stats, err := svc.Stats(context.Background(), tt.period)
			require.NoError(t, err)
			require.Len(t, stats.Buckets, tt.buckets)
			assert.Equal(t, tt.first, stats.Buckets[0].BucketDays)
			assert.Equal(t, tt.last, stats.Buckets[len(stats.Buckets)-1].BucketDays)
			assert.Nil(t, stats.MostUsed)
			assert.Zero(t, stats.Summary.AverageDays)
		})
	}
}

func TestStats_MostUsedTieBreak(t *testing.T) {
	list := []*models.Reservation{
		{StartDate: date("2024-01-05"), DurationDays: 2, Resource: "PC 095"},
		{StartDate: date("2024-01-05"), DurationDays: 2, Resource: "PC 083"},
	}
	stats := buildStats("week", date("2024-01-02"), date("2024-01-08"), 1, list)
	require.NotNil(t, stats.MostUsed)
	assert.Equal(t, "PC 083", stats.MostUsed.Resource)
	assert.Len(t, stats.PerResource, 2)
}

func TestStats_InvalidPeriod(t *testing.T) {
	repo := new(mockRepo)
	svc := newTestService(t, repo, testOptions())

	_, err := svc.Stats(context.Background(), "decade")
	assert.True(t, errors.Is(err, domain.ErrValidation))
	repo.AssertNotCalled(t, "GetReservationsInRange", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
