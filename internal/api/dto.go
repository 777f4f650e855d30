package api

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"pcbooking/internal/domain"
	"pcbooking/internal/interval"
	"pcbooking/internal/models"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

type createReservationRequest struct {
	StartDate    string `json:"start_date" validate:"required,datetime=2006-01-02"`
	DurationDays int    `json:"duration_days" validate:"required"`
	Resource     string `json:"resource" validate:"required,max=64"`
	BookedBy     string `json:"booked_by" validate:"required,max=120"`
	PIN          string `json:"pin" validate:"max=32"`
}

type cancelReservationRequest struct {
	PIN string `json:"pin" validate:"max=32"`
}

type extendReservationRequest struct {
	ExtraDays int    `json:"extra_days"`
	PIN       string `json:"pin" validate:"max=32"`
}

type reservationResponse struct {
	ID           int64     `json:"id"`
	Resource     string    `json:"resource"`
	BookedBy     string    `json:"booked_by"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	DurationDays int       `json:"duration_days"`
	CreatedAt    time.Time `json:"created_at"`
}

func toReservationResponse(r *models.Reservation) reservationResponse {
	return reservationResponse{
		ID:           r.ID,
		Resource:     r.Resource,
		BookedBy:     r.BookedBy,
		StartDate:    interval.FormatDate(r.StartDate),
		EndDate:      interval.FormatDate(r.EndDate()),
		DurationDays: r.DurationDays,
		CreatedAt:    r.CreatedAt,
	}
}

func toReservationList(list []*models.Reservation) []reservationResponse {
	out := make([]reservationResponse, 0, len(list))
	for _, r := range list {
		out = append(out, toReservationResponse(r))
	}
	return out
}

// requestValidator checks request bodies for shape only. Booking rules are
// enforced by the service.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{validate: v}
}

func (v *requestValidator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.NewValidationError("body", "%v", err)
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return domain.NewValidationError(fe.Field(), "is required")
	case "datetime":
		return domain.NewValidationError(fe.Field(), "must be a date in YYYY-MM-DD format")
	case "max":
		return domain.NewValidationError(fe.Field(), "must be at most %s characters", fe.Param())
	default:
		return domain.NewValidationError(fe.Field(), "failed %s validation", fe.Tag())
	}
}

// decodeBody reads a JSON body into dst and validates it. An empty body is
// accepted when allowEmpty is set.
func (v *requestValidator) decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return domain.NewValidationError("body", "invalid JSON body")
		}
	}
	return v.Struct(dst)
}
