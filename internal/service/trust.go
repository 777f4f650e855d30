package service

import (
	"crypto/subtle"
	"fmt"
	"net"
	"strings"

	"pcbooking/internal/config"
)

// Requester identifies where a request came from. Origin is an IP address.
type Requester struct {
	Origin     string
	BypassCode string
}

// TrustPolicy decides whether a requester may skip the PIN. It reduces
// friction inside the lab network and must not be treated as authentication.
type TrustPolicy struct {
	networks []*net.IPNet
	code     string
}

func NewTrustPolicy(cfg config.TrustConfig) (*TrustPolicy, error) {
	p := &TrustPolicy{code: cfg.BypassCode}
	for _, raw := range cfg.Origins {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("trusted origin %q is not an IP or CIDR", raw)
			}
			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			p.networks = append(p.networks, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, network, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted origin %q: %w", raw, err)
		}
		p.networks = append(p.networks, network)
	}
	return p, nil
}

// Trusted reports whether r comes from an allowlisted network and, when a
// bypass code is configured, presents it.
func (p *TrustPolicy) Trusted(r Requester) bool {
	if p == nil || len(p.networks) == 0 {
		return false
	}

	ip := net.ParseIP(strings.TrimSpace(r.Origin))
	if ip == nil {
		return false
	}

	matched := false
	for _, n := range p.networks {
		if n.Contains(ip) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	if p.code == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(r.BypassCode), []byte(p.code)) == 1
}
