package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pcbooking/internal/config"
	"pcbooking/internal/logging"
	"pcbooking/internal/metrics"
	"pcbooking/internal/models"
	"pcbooking/internal/service"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

const (
	healthPath      = "/healthz"
	headerRequestID = "X-Request-ID"
)

// BookingService is the part of the reservation core the HTTP API drives.
type BookingService interface {
	Resources() []string
	FindAvailable(ctx context.Context, start time.Time, days int) ([]string, error)
	List(ctx context.Context) ([]*models.Reservation, error)
	Create(ctx context.Context, req service.CreateRequest, from service.Requester) (*models.Reservation, error)
	Cancel(ctx context.Context, id int64, suppliedPIN string, from service.Requester) error
	Extend(ctx context.Context, id int64, extraDays int, suppliedPIN string, from service.Requester) (int, error)
	Stats(ctx context.Context, period string) (*models.UsageStats, error)
	History(ctx context.Context, from, to time.Time) ([]*models.Reservation, error)
	Ping(ctx context.Context) error
}

// HTTPServer exposes the booking core as a JSON API.
type HTTPServer struct {
	cfg       config.APIConfig
	svc       BookingService
	router    *httprouter.Router
	server    *http.Server
	auth      *HTTPAuth
	validator *requestValidator
	logger    *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc BookingService, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:       cfg,
		svc:       svc,
		router:    httprouter.New(),
		auth:      NewHTTPAuth(cfg),
		validator: newRequestValidator(),
		logger:    logging.Component(logger, "http"),
	}
	srv.routes()

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() {
	r := s.router
	r.GET("/api/v1/resources", s.handleResources)
	r.GET("/api/v1/availability", s.handleAvailability)
	r.GET("/api/v1/reservations", s.handleListReservations)
	r.POST("/api/v1/reservations", s.handleCreateReservation)
	r.DELETE("/api/v1/reservations/:id", s.handleCancelReservation)
	r.POST("/api/v1/reservations/:id/extend", s.handleExtendReservation)
	r.GET("/api/v1/stats", s.handleStats)
	r.GET("/api/v1/export", s.handleExport)
	r.GET(healthPath, s.handleHealth)

	r.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorMessage(w, http.StatusNotFound, codeForStatus(http.StatusNotFound), "not found")
	})
	r.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorMessage(w, http.StatusMethodNotAllowed, codeForStatus(http.StatusMethodNotAllowed), "method not allowed")
	})
	r.PanicHandler = func(w http.ResponseWriter, req *http.Request, v interface{}) {
		s.logger.Error().
			Str("request_id", req.Header.Get(headerRequestID)).
			Interface("panic", v).
			Msg("handler panic")
		writeErrorMessage(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// Handler returns the router wrapped in request id, access log and auth
// middleware.
func (s *HTTPServer) Handler() http.Handler {
	return s.requestIDMiddleware(s.loggingMiddleware(s.auth.Wrap(s.router)))
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(headerRequestID, id)
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		endpoint := s.endpointLabel(r)
		metrics.IncHTTP(endpoint, statusClass(recorder.status))
		s.logger.Info().
			Str("request_id", r.Header.Get(headerRequestID)).
			Str("method", r.Method).
			Str("endpoint", endpoint).
			Str("remote", clientIP(r, s.cfg.TrustForwardedFor)).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

// endpointLabel collapses numeric path segments so reservation ids do not
// become metric labels. Unrouted paths share one label.
func (s *HTTPServer) endpointLabel(r *http.Request) string {
	if h, _, _ := s.router.Lookup(r.Method, r.URL.Path); h == nil {
		return "unmatched"
	}
	parts := strings.Split(r.URL.Path, "/")
	for i, p := range parts {
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}
