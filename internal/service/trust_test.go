package service

import (
	"testing"

	"pcbooking/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrustPolicy(t *testing.T) {
	p, err := NewTrustPolicy(config.TrustConfig{Origins: []string{"10.1.0.0/16", "192.168.0.20", "::1"}})
	require.NoError(t, err)

	tests := []struct {
		origin string
		want   bool
	}{
		{"10.1.200.3", true},
		{"10.2.0.1", false},
		{"192.168.0.20", true},
		{"192.168.0.21", false},
		{"::1", true},
		{"", false},
		{"not-an-ip", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Trusted(Requester{Origin: tt.origin}), tt.origin)
	}
}

func TestTrustPolicy_BypassCode(t *testing.T) {
	p, err := NewTrustPolicy(config.TrustConfig{Origins: []string{"10.0.0.0/8"}, BypassCode: "lab-42"})
	require.NoError(t, err)

	assert.False(t, p.Trusted(Requester{Origin: "10.0.0.1"}))
	assert.False(t, p.Trusted(Requester{Origin: "10.0.0.1", BypassCode: "lab-41"}))
	assert.True(t, p.Trusted(Requester{Origin: "10.0.0.1", BypassCode: "lab-42"}))
	assert.False(t, p.Trusted(Requester{Origin: "172.16.0.1", BypassCode: "lab-42"}))
}

func TestTrustPolicy_Empty(t *testing.T) {
	p, err := NewTrustPolicy(config.TrustConfig{BypassCode: "lab-42"})
	require.NoError(t, err)
	assert.False(t, p.Trusted(Requester{Origin: "127.0.0.1", BypassCode: "lab-42"}))

	var nilPolicy *TrustPolicy
	assert.False(t, nilPolicy.Trusted(Requester{Origin: "127.0.0.1"}))
}

func TestNewTrustPolicy_Invalid(t *testing.T) {
	_, err := NewTrustPolicy(config.TrustConfig{Origins: []string{"lab"}})
	assert.Error(t, err)
	_, err = NewTrustPolicy(config.TrustConfig{Origins: []string{"10.0.0.0/40"}})
	assert.Error(t, err)
}
