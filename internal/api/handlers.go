package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pcbooking/internal/domain"
	"pcbooking/internal/export"
	"pcbooking/internal/interval"
	"pcbooking/internal/service"

	"github.com/julienschmidt/httprouter"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) handleResources(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{"resources": s.svc.Resources()})
}

// handleAvailability lists free resources for ?date=YYYY-MM-DD&days=N. A
// missing or unparsable date yields the whole roster.
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	var start time.Time
	if raw := strings.TrimSpace(query.Get("date")); raw != "" {
		if parsed, err := interval.ParseDate(raw); err == nil {
			start = parsed
		}
	}

	days := 1
	if raw := strings.TrimSpace(query.Get("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, s.logger, domain.NewValidationError("days", "must be an integer"))
			return
		}
		days = n
	}

	available, err := s.svc.FindAvailable(r.Context(), start, days)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	resp := map[string]any{"available": available}
	if !start.IsZero() {
		resp["date"] = interval.FormatDate(start)
		resp["days"] = days
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := s.svc.List(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": toReservationList(list)})
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body createReservationRequest
	if err := s.validator.decodeBody(w, r, &body, false); err != nil {
		writeError(w, s.logger, err)
		return
	}

	created, err := s.svc.Create(r.Context(), service.CreateRequest{
		StartDate:    body.StartDate,
		DurationDays: body.DurationDays,
		Resource:     body.Resource,
		BookedBy:     body.BookedBy,
		PIN:          body.PIN,
	}, requesterFrom(r, s.cfg.TrustForwardedFor))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/reservations/%d", created.ID))
	writeJSON(w, http.StatusCreated, toReservationResponse(created))
}

func (s *HTTPServer) handleCancelReservation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := parseID(ps)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	var body cancelReservationRequest
	if err := s.validator.decodeBody(w, r, &body, true); err != nil {
		writeError(w, s.logger, err)
		return
	}

	if err := s.svc.Cancel(r.Context(), id, body.PIN, requesterFrom(r, s.cfg.TrustForwardedFor)); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": "cancelled"})
}

func (s *HTTPServer) handleExtendReservation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := parseID(ps)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	var body extendReservationRequest
	if err := s.validator.decodeBody(w, r, &body, false); err != nil {
		writeError(w, s.logger, err)
		return
	}

	duration, err := s.svc.Extend(r.Context(), id, body.ExtraDays, body.PIN, requesterFrom(r, s.cfg.TrustForwardedFor))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "duration_days": duration})
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	period := r.URL.Query().Get("period")
	if strings.TrimSpace(period) == "" {
		period = "week"
	}

	stats, err := s.svc.Stats(r.Context(), period)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleExport streams the reservation history for ?from=&to= as XLSX. The
// workbook is built in memory first so failures still get a JSON error.
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	from, err := parseQueryDate(query.Get("from"), "from")
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	to, err := parseQueryDate(query.Get("to"), "to")
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	list, err := s.svc.History(r.Context(), from, to)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, s.svc.Resources(), from, to, list); err != nil {
		writeError(w, s.logger, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(from, to)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn().Err(err).Msg("write export body")
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := s.svc.Ping(r.Context()); err != nil {
		writeError(w, s.logger, domain.Unavailable(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseID(ps httprouter.Params) (int64, error) {
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

func parseQueryDate(raw, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, domain.NewValidationError(field, "is required")
	}
	t, err := interval.ParseDate(raw)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}
