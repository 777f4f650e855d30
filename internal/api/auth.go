package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"pcbooking/internal/config"

	"github.com/cockroachdb/errors"
)

const (
	apiKeyHeaderDefault = "X-API-Key"

	permReadReservations  = "read:reservations"
	permWriteReservations = "write:reservations"
	permReadStats         = "read:stats"
)

var (
	errMissingAPIKey    = errors.New("missing api key header")
	errInvalidAPIKey    = errors.New("invalid api key")
	errPermissionDenied = errors.New("permission denied")
	errRateLimited      = errors.New("rate limit exceeded")
)

// HTTPAuth provides API-key auth and per-client rate limiting.
type HTTPAuth struct {
	cfg          config.APIConfig
	header       string
	clients      map[string]config.APIClientKey
	limiter      *rateLimiter
	trustForward bool
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	header := strings.TrimSpace(cfg.Auth.HeaderAPIKey)
	if header == "" {
		header = apiKeyHeaderDefault
	}

	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{
		cfg:          cfg,
		header:       header,
		clients:      m,
		limiter:      newRateLimiter(cfg.RateLimit),
		trustForward: cfg.TrustForwardedFor,
	}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == healthPath {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			if err := a.checkAuth(r); err != nil {
				statusCode := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					statusCode = http.StatusForbidden
				}
				writeErrorMessage(w, statusCode, codeForStatus(statusCode), err.Error())
				return
			}
		}

		if !a.limiter.allow(a.clientKey(r)) {
			writeErrorMessage(w, http.StatusTooManyRequests, "rate_limited", errRateLimited.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	apiKey := strings.TrimSpace(r.Header.Get(a.header))
	if apiKey == "" {
		return errMissingAPIKey
	}

	client, ok := a.lookup(apiKey)
	if !ok {
		return errInvalidAPIKey
	}
	return checkPermissions(client, requiredPermission(r))
}

// lookup compares the presented key against every configured key.
func (a *HTTPAuth) lookup(apiKey string) (config.APIClientKey, bool) {
	var (
		found config.APIClientKey
		ok    bool
	)
	for key, client := range a.clients {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			found, ok = client, true
		}
	}
	return found, ok
}

func checkPermissions(client config.APIClientKey, required string) error {
	if required == "" {
		return nil
	}
	// an empty permission list allows everything
	if len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func requiredPermission(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/v1/stats"), strings.HasPrefix(path, "/api/v1/export"):
		return permReadStats
	case !strings.HasPrefix(path, "/api/v1/"):
		return ""
	case r.Method == http.MethodGet, r.Method == http.MethodHead:
		return permReadReservations
	default:
		return permWriteReservations
	}
}

// clientKey is the API key when one is presented, otherwise the caller's IP.
func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.header)); apiKey != "" {
		return "key:" + apiKey
	}
	if ip := clientIP(r, a.trustForward); ip != "" {
		return ip
	}
	return clientKeyUnknown
}
