package api

import (
	"net"
	"net/http"
	"strings"

	"pcbooking/internal/service"
)

const (
	headerForwardedFor = "X-Forwarded-For"
	headerBypassCode   = "X-Bypass-Code"
	clientKeyUnknown   = "unknown"
)

// clientIP returns the caller address. The first X-Forwarded-For hop is used
// only when the deployment sits behind a proxy it trusts.
func clientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if fwd := r.Header.Get(headerForwardedFor); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func requesterFrom(r *http.Request, trustForwarded bool) service.Requester {
	return service.Requester{
		Origin:     clientIP(r, trustForwarded),
		BypassCode: strings.TrimSpace(r.Header.Get(headerBypassCode)),
	}
}
