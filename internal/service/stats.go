package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"pcbooking/internal/domain"
	"pcbooking/internal/interval"
	"pcbooking/internal/models"
)

type statsWindow struct {
	days       int
	bucketDays int
}

var statsWindows = map[string]statsWindow{
	models.PeriodWeek:     {days: 7, bucketDays: 1},
	models.PeriodMonth:    {days: 30, bucketDays: 1},
	models.PeriodSemester: {days: 180, bucketDays: 7},
	models.PeriodYear:     {days: 365, bucketDays: 15},
}

// Stats summarizes active reservations over a window ending today.
func (s *ReservationService) Stats(ctx context.Context, period string) (*models.UsageStats, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	w, ok := statsWindows[period]
	if !ok {
		return nil, domain.NewValidationError("period", "must be one of week, month, semester, year")
	}

	to := s.today()
	from := to.AddDate(0, 0, -(w.days - 1))

	list, err := s.repo.GetReservationsInRange(ctx, from, to, false)
	if err != nil {
		return nil, domain.Unavailable(err)
	}

	return buildStats(period, from, to, w.bucketDays, list), nil
}

func buildStats(period string, from, to time.Time, bucketDays int, list []*models.Reservation) *models.UsageStats {
	out := &models.UsageStats{
		Period:      period,
		From:        interval.FormatDate(from),
		To:          interval.FormatDate(to),
		Buckets:     []models.StatsBucket{},
		PerResource: []models.ResourceUsage{},
	}

	for start := from; !start.After(to); start = start.AddDate(0, 0, bucketDays) {
		end := interval.EndDateInclusive(start, bucketDays)
		if end.After(to) {
			end = to
		}
		span := int(end.Sub(start).Hours()/24) + 1

		bucket := models.StatsBucket{Date: interval.FormatDate(start), BucketDays: span}
		resources := map[string]bool{}
		for _, r := range list {
			n := interval.DaysInside(r.StartDate, r.DurationDays, start, end)
			if n == 0 {
				continue
			}
			bucket.ActiveReservations++
			bucket.ReservedDays += n
			resources[r.Resource] = true
		}
		bucket.DistinctResources = len(resources)
		out.Buckets = append(out.Buckets, bucket)
	}

	usage := map[string]*models.ResourceUsage{}
	for _, r := range list {
		if r.StartDate.Before(from) || r.StartDate.After(to) {
			continue
		}
		out.Summary.TotalReservations++
		out.Summary.TotalDays += r.DurationDays

		u, ok := usage[r.Resource]
		if !ok {
			u = &models.ResourceUsage{Resource: r.Resource}
			usage[r.Resource] = u
		}
		u.Reservations++
		u.TotalDays += r.DurationDays
	}

	out.Summary.ResourcesUsed = len(usage)
	if out.Summary.TotalReservations > 0 {
		avg := float64(out.Summary.TotalDays) / float64(out.Summary.TotalReservations)
		out.Summary.AverageDays = math.Round(avg*10) / 10
	}

	for _, u := range usage {
		out.PerResource = append(out.PerResource, *u)
	}
	sort.Slice(out.PerResource, func(i, j int) bool {
		a, b := out.PerResource[i], out.PerResource[j]
		if a.Reservations != b.Reservations {
			return a.Reservations > b.Reservations
		}
		if a.TotalDays != b.TotalDays {
			return a.TotalDays > b.TotalDays
		}
		return a.Resource < b.Resource
	})
	if len(out.PerResource) > 0 {
		top := out.PerResource[0]
		out.MostUsed = &top
	}

	return out
}
