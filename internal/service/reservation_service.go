package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"pcbooking/internal/config"
	"pcbooking/internal/domain"
	"pcbooking/internal/events"
	"pcbooking/internal/interval"
	"pcbooking/internal/metrics"
	"pcbooking/internal/models"
	"pcbooking/internal/pin"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// CreateRequest carries a booking as submitted. StartDate is YYYY-MM-DD.
type CreateRequest struct {
	StartDate    string
	DurationDays int
	Resource     string
	BookedBy     string
	PIN          string
}

type Options struct {
	Booking config.BookingConfig
	Pin     config.PinConfig
	// RecordPINOnBypass hashes a PIN supplied by a trusted requester instead
	// of storing the placeholder.
	RecordPINOnBypass bool
	Clock             domain.Clock
}

type ReservationService struct {
	repo       domain.ReservationRepository
	hasher     pin.Hasher
	trust      *TrustPolicy
	eventBus   domain.EventPublisher
	limiter    domain.AttemptLimiter
	clock      domain.Clock
	booking    config.BookingConfig
	pinPattern *regexp.Regexp
	attempts   int
	window     time.Duration
	recordPIN  bool
	roster     map[string]bool
	logger     *zerolog.Logger
}

func NewReservationService(
	repo domain.ReservationRepository,
	hasher pin.Hasher,
	trust *TrustPolicy,
	eventBus domain.EventPublisher,
	limiter domain.AttemptLimiter,
	opts Options,
	logger *zerolog.Logger,
) (*ReservationService, error) {
	if err := config.ValidateResources(opts.Booking.Resources); err != nil {
		return nil, err
	}

	pattern := opts.Pin.Pattern
	if pattern == "" {
		pattern = config.DefaultPinPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pin pattern: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	roster := make(map[string]bool, len(opts.Booking.Resources))
	for _, r := range opts.Booking.Resources {
		roster[r] = true
	}

	return &ReservationService{
		repo:       repo,
		hasher:     hasher,
		trust:      trust,
		eventBus:   eventBus,
		limiter:    limiter,
		clock:      clock,
		booking:    opts.Booking,
		pinPattern: re,
		attempts:   opts.Pin.MaxAttempts,
		window:     time.Duration(opts.Pin.AttemptWindow) * time.Second,
		recordPIN:  opts.RecordPINOnBypass,
		roster:     roster,
		logger:     logger,
	}, nil
}

// Resources returns the roster in configured order.
func (s *ReservationService) Resources() []string {
	return append([]string(nil), s.booking.Resources...)
}

func (s *ReservationService) today() time.Time {
	return interval.Truncate(s.clock.Now())
}

// FindAvailable returns roster members with no active reservation sharing a
// day with [start, start+days-1]. A zero start or days < 1 yields the whole
// roster.
func (s *ReservationService) FindAvailable(ctx context.Context, start time.Time, days int) ([]string, error) {
	if start.IsZero() || days < 1 {
		return s.Resources(), nil
	}

	booked, err := s.repo.GetBookedResources(ctx, interval.Truncate(start), days)
	if err != nil {
		return nil, domain.Unavailable(err)
	}

	taken := make(map[string]bool, len(booked))
	for _, r := range booked {
		taken[r] = true
	}

	available := make([]string, 0, len(s.booking.Resources))
	for _, r := range s.booking.Resources {
		if !taken[r] {
			available = append(available, r)
		}
	}
	return available, nil
}

// FindConflict returns one active reservation on resource overlapping the
// candidate interval, or nil. excludeID 0 excludes nothing.
func (s *ReservationService) FindConflict(ctx context.Context, resource string, start time.Time, days int, excludeID int64) (*models.Reservation, error) {
	r, err := s.repo.FindOverlapping(ctx, resource, interval.Truncate(start), days, excludeID)
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	return r, nil
}

func (s *ReservationService) Create(ctx context.Context, req CreateRequest, from Requester) (*models.Reservation, error) {
	r, secret, err := s.validateCreate(req, from)
	if err != nil {
		metrics.IncReservationOp("create", "rejected")
		return nil, err
	}

	r.PinHash = pin.PlaceholderHash
	if secret != "" {
		hash, err := s.hasher.Hash(secret)
		if err != nil {
			return nil, errors.Wrap(err, "hash pin")
		}
		r.PinHash = hash
	}

	if err := s.repo.CreateReservationWithLock(ctx, r); err != nil {
		return nil, s.writeFailed("create", r.Resource, err)
	}

	metrics.IncReservationOp("create", "ok")
	s.logger.Info().
		Int64("reservation_id", r.ID).
		Str("resource", r.Resource).
		Str("start_date", interval.FormatDate(r.StartDate)).
		Int("duration_days", r.DurationDays).
		Bool("placeholder_pin", r.PinHash == pin.PlaceholderHash).
		Msg("reservation created")
	s.publishEvent(events.EventReservationCreated, r, from, r.PinHash == pin.PlaceholderHash)
	return r, nil
}

// validateCreate returns the reservation to insert and the PIN to hash; an
// empty PIN means the placeholder is stored.
func (s *ReservationService) validateCreate(req CreateRequest, from Requester) (*models.Reservation, string, error) {
	rawDate := strings.TrimSpace(req.StartDate)
	if rawDate == "" {
		return nil, "", domain.NewValidationError("start_date", "is required")
	}
	start, err := interval.ParseDate(rawDate)
	if err != nil {
		return nil, "", domain.NewValidationError("start_date", "must be a date in YYYY-MM-DD format")
	}

	if req.DurationDays < 1 || req.DurationDays > s.booking.MaxInitialDays {
		return nil, "", domain.NewValidationError("duration_days", "must be between 1 and %d", s.booking.MaxInitialDays)
	}
	if !interval.Fits(start, req.DurationDays) {
		return nil, "", domain.NewValidationError("duration_days", "must end on or before %s", interval.FormatDate(interval.LastDate))
	}

	resource := strings.TrimSpace(req.Resource)
	if resource == "" {
		return nil, "", domain.NewValidationError("resource", "is required")
	}
	if !s.roster[resource] {
		return nil, "", domain.NewValidationError("resource", "%q is not a bookable resource", resource)
	}

	bookedBy := strings.TrimSpace(req.BookedBy)
	if bookedBy == "" {
		return nil, "", domain.NewValidationError("booked_by", "is required")
	}

	secret := strings.TrimSpace(req.PIN)
	trusted := s.trust.Trusted(from)
	switch {
	case !trusted && secret == "":
		return nil, "", domain.NewValidationError("pin", "is required")
	case trusted && !s.recordPIN:
		secret = ""
	}
	if secret != "" && !s.pinPattern.MatchString(secret) {
		return nil, "", domain.NewValidationError("pin", "must match %s", s.pinPattern.String())
	}

	if start.Before(s.today()) {
		return nil, "", domain.ErrPastDate
	}

	return &models.Reservation{
		StartDate:    start,
		DurationDays: req.DurationDays,
		Resource:     resource,
		BookedBy:     bookedBy,
	}, secret, nil
}

// Cancel soft-deletes a reservation. Trusted requesters cancel by id alone;
// everyone else needs the PIN, and a wrong PIN is indistinguishable from an
// unknown id.
func (s *ReservationService) Cancel(ctx context.Context, id int64, suppliedPIN string, from Requester) error {
	if id <= 0 {
		return domain.NewValidationError("id", "must be a positive integer")
	}

	if s.trust.Trusted(from) {
		ok, err := s.repo.CancelReservationByID(ctx, id)
		if err != nil {
			return s.writeFailed("cancel", "", err)
		}
		if !ok {
			metrics.IncReservationOp("cancel", "not_found")
			return domain.ErrNotFound
		}
		s.logger.Info().Int64("reservation_id", id).Str("origin", from.Origin).Msg("reservation cancelled by trusted origin")
		s.publishEvent(events.EventReservationCancelled, &models.Reservation{ID: id}, from, true)
		metrics.IncReservationOp("cancel", "ok")
		return nil
	}

	secret := strings.TrimSpace(suppliedPIN)
	if secret == "" {
		return domain.NewValidationError("pin", "is required")
	}
	if err := s.checkAttempts(ctx, from); err != nil {
		return err
	}

	r, err := s.repo.GetActiveReservation(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.IncReservationOp("cancel", "unauthorized")
		return domain.ErrUnauthorized
	}
	if err != nil {
		return s.writeFailed("cancel", "", err)
	}
	if !s.hasher.Verify(r.PinHash, secret) {
		metrics.IncReservationOp("cancel", "unauthorized")
		return domain.ErrUnauthorized
	}

	// the stored hash is matched again in the UPDATE so a concurrent cancel
	// leaves exactly one winner
	ok, err := s.repo.CancelReservation(ctx, id, r.PinHash)
	if err != nil {
		return s.writeFailed("cancel", r.Resource, err)
	}
	if !ok {
		metrics.IncReservationOp("cancel", "unauthorized")
		return domain.ErrUnauthorized
	}

	s.resetAttempts(ctx, from)
	metrics.IncReservationOp("cancel", "ok")
	s.logger.Info().Int64("reservation_id", id).Str("resource", r.Resource).Msg("reservation cancelled")
	s.publishEvent(events.EventReservationCancelled, r, from, false)
	return nil
}

// Extend adds extraDays to an active reservation and returns the new duration.
// There is no trusted-origin bypass here.
func (s *ReservationService) Extend(ctx context.Context, id int64, extraDays int, suppliedPIN string, from Requester) (int, error) {
	if extraDays < s.booking.ExtendMinDays || extraDays > s.booking.ExtendMaxDays {
		metrics.IncReservationOp("extend", "rejected")
		return 0, errors.Wrapf(domain.ErrInvalidExtension,
			"extra_days must be between %d and %d", s.booking.ExtendMinDays, s.booking.ExtendMaxDays)
	}
	if id <= 0 {
		return 0, domain.NewValidationError("id", "must be a positive integer")
	}
	if err := s.checkAttempts(ctx, from); err != nil {
		return 0, err
	}

	r, err := s.repo.GetActiveReservation(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.IncReservationOp("extend", "not_found")
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, s.writeFailed("extend", "", err)
	}

	if !s.hasher.Verify(r.PinHash, strings.TrimSpace(suppliedPIN)) {
		metrics.IncReservationOp("extend", "unauthorized")
		return 0, domain.ErrUnauthorized
	}

	newDuration := r.DurationDays + extraDays
	if newDuration > s.booking.MaxTotalDays {
		metrics.IncReservationOp("extend", "rejected")
		return 0, errors.Wrapf(domain.ErrInvalidExtension,
			"total duration %d exceeds the maximum of %d days", newDuration, s.booking.MaxTotalDays)
	}
	if !interval.Fits(r.StartDate, newDuration) {
		metrics.IncReservationOp("extend", "rejected")
		return 0, errors.Wrapf(domain.ErrInvalidExtension,
			"reservation must end on or before %s", interval.FormatDate(interval.LastDate))
	}

	if err := s.repo.ExtendReservationWithLock(ctx, r.ID, r.Version, newDuration); err != nil {
		return 0, s.writeFailed("extend", r.Resource, err)
	}

	s.resetAttempts(ctx, from)
	r.DurationDays = newDuration
	metrics.IncReservationOp("extend", "ok")
	s.logger.Info().
		Int64("reservation_id", r.ID).
		Int("extra_days", extraDays).
		Int("duration_days", newDuration).
		Msg("reservation extended")
	s.publishEvent(events.EventReservationExtended, r, from, false)
	return newDuration, nil
}

// List returns active reservations ordered by start date, then id.
func (s *ReservationService) List(ctx context.Context) ([]*models.Reservation, error) {
	list, err := s.repo.ListActiveReservations(ctx)
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	return list, nil
}

// History returns every reservation, cancelled ones included, overlapping [from, to].
func (s *ReservationService) History(ctx context.Context, from, to time.Time) ([]*models.Reservation, error) {
	from, to = interval.Truncate(from), interval.Truncate(to)
	if to.Before(from) {
		return nil, domain.NewValidationError("to", "must not be before from")
	}
	list, err := s.repo.GetReservationsInRange(ctx, from, to, true)
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	return list, nil
}

// Ping reports whether the store is reachable.
func (s *ReservationService) Ping(ctx context.Context) error {
	return domain.Unavailable(s.repo.PingContext(ctx))
}

func (s *ReservationService) checkAttempts(ctx context.Context, from Requester) error {
	if s.limiter == nil || s.attempts <= 0 {
		return nil
	}
	allowed, err := s.limiter.Allow(ctx, attemptKey(from), s.attempts, s.window)
	if err != nil {
		// fail open: the PIN check still applies
		s.logger.Warn().Err(err).Msg("attempt limiter unavailable")
		return nil
	}
	if !allowed {
		metrics.IncReservationOp("pin_attempt", "throttled")
		s.logger.Warn().Str("origin", from.Origin).Msg("pin attempts exceeded")
		return domain.ErrTooManyAttempts
	}
	return nil
}

func (s *ReservationService) resetAttempts(ctx context.Context, from Requester) {
	if s.limiter == nil || s.attempts <= 0 {
		return
	}
	if err := s.limiter.Reset(ctx, attemptKey(from)); err != nil {
		s.logger.Warn().Err(err).Msg("attempt limiter reset failed")
	}
}

func attemptKey(from Requester) string {
	if from.Origin == "" {
		return "unknown"
	}
	return from.Origin
}

// writeFailed classifies a store error for op and records it.
func (s *ReservationService) writeFailed(op, resource string, err error) error {
	var conflict *domain.ConflictError
	switch {
	case errors.As(err, &conflict):
		metrics.IncReservationOp(op, "conflict")
		metrics.IncConflict(resource)
		s.logger.Info().
			Str("op", op).
			Str("resource", resource).
			Int64("blocking_id", conflict.Blocking.ReservationID).
			Msg("reservation conflict")
		return err
	case errors.Is(err, domain.ErrConcurrentModification):
		metrics.IncReservationOp(op, "concurrent")
		return err
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncReservationOp(op, "not_found")
		return err
	}

	metrics.IncReservationOp(op, "error")
	s.logger.Error().Err(err).Str("op", op).Msg("reservation store failure")
	return domain.Unavailable(err)
}

func (s *ReservationService) publishEvent(eventType string, r *models.Reservation, from Requester, trusted bool) {
	if s.eventBus == nil {
		return
	}

	payload := events.ReservationEventPayload{
		ReservationID: r.ID,
		Resource:      r.Resource,
		BookedBy:      r.BookedBy,
		DurationDays:  r.DurationDays,
		Trusted:       trusted,
		Origin:        from.Origin,
	}
	if !r.StartDate.IsZero() {
		payload.StartDate = interval.FormatDate(r.StartDate)
		payload.EndDate = interval.FormatDate(r.EndDate())
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("reservation_id", r.ID).Msg("publish event error")
	}
}
