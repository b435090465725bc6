package server

import (
	"net/http"
	"net/netip"
	"testing"

	"github.com/lawnchairsociety/clanksim/internal/config"
)

func TestSessionLimiter_PerIPLimit(t *testing.T) {
	limiter := NewSessionLimiter(config.ConnectionsConfig{MaxPerIP: 2, MaxTotal: 100})

	if !limiter.TryAcquire("192.168.1.1") {
		t.Error("first session should be allowed")
	}
	if !limiter.TryAcquire("192.168.1.1") {
		t.Error("second session should be allowed")
	}
	if limiter.TryAcquire("192.168.1.1") {
		t.Error("third session from same IP should be rejected")
	}
	if !limiter.TryAcquire("192.168.1.2") {
		t.Error("session from different IP should be allowed")
	}

	limiter.Release("192.168.1.1")
	if !limiter.TryAcquire("192.168.1.1") {
		t.Error("session should be allowed after release")
	}
}

func TestSessionLimiter_TotalLimit(t *testing.T) {
	limiter := NewSessionLimiter(config.ConnectionsConfig{MaxPerIP: 10, MaxTotal: 3})

	for _, ip := range []string{"192.168.1.1", "192.168.1.2", "192.168.1.3"} {
		if !limiter.TryAcquire(ip) {
			t.Errorf("session from %s should be allowed", ip)
		}
	}
	if limiter.TryAcquire("192.168.1.4") {
		t.Error("fourth session should be rejected due to total limit")
	}

	limiter.Release("192.168.1.1")
	if !limiter.TryAcquire("192.168.1.4") {
		t.Error("session should be allowed after release")
	}
}

func TestSessionLimiter_Unlimited(t *testing.T) {
	limiter := NewSessionLimiter(config.ConnectionsConfig{})

	for i := 0; i < 100; i++ {
		if !limiter.TryAcquire("192.168.1.1") {
			t.Errorf("session %d should be allowed when unlimited", i)
		}
	}
}

func TestSessionLimiter_Active(t *testing.T) {
	limiter := NewSessionLimiter(config.ConnectionsConfig{MaxPerIP: 10, MaxTotal: 100})

	limiter.TryAcquire("192.168.1.1")
	limiter.TryAcquire("192.168.1.1")
	limiter.TryAcquire("192.168.1.2")

	sessions, ips := limiter.Active()
	if sessions != 3 || ips != 2 {
		t.Errorf("Active() = %d, %d; want 3, 2", sessions, ips)
	}

	limiter.Release("192.168.1.2")
	limiter.Release("192.168.1.2") // extra release is ignored for the IP
	sessions, ips = limiter.Active()
	if sessions != 1 || ips != 1 {
		t.Errorf("Active() after release = %d, %d; want 1, 1", sessions, ips)
	}
}

func TestHostOnly(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"192.168.1.1:12345", "192.168.1.1"},
		{"[::1]:12345", "::1"},
		{"localhost:4000", "localhost"},
		{"192.168.1.1", "192.168.1.1"},
	}

	for _, tt := range tests {
		if got := hostOnly(tt.input); got != tt.expected {
			t.Errorf("hostOnly(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestClientIP(t *testing.T) {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("127.0.0.1/32"),
	}

	tests := []struct {
		name       string
		xff        string
		xri        string
		remoteAddr string
		trusted    []netip.Prefix
		expected   string
	}{
		{"X-Forwarded-For single IP", "203.0.113.50", "", "10.0.0.1:12345", trusted, "203.0.113.50"},
		{"X-Forwarded-For skips trusted hops", "203.0.113.50, 10.1.2.3", "", "10.0.0.1:12345", trusted, "203.0.113.50"},
		{"X-Forwarded-For forged prefix", "1.2.3.4, 203.0.113.50", "", "10.0.0.1:12345", trusted, "203.0.113.50"},
		{"X-Real-IP", "", "203.0.113.50", "10.0.0.1:12345", trusted, "203.0.113.50"},
		{"X-Forwarded-For wins", "203.0.113.50", "198.51.100.25", "10.0.0.1:12345", trusted, "203.0.113.50"},
		{"all hops trusted", "10.9.9.9", "", "127.0.0.1:80", trusted, "127.0.0.1"},
		{"untrusted peer ignores X-Forwarded-For", "203.0.113.50", "", "192.168.1.100:54321", trusted, "192.168.1.100"},
		{"untrusted peer ignores X-Real-IP", "", "203.0.113.50", "192.168.1.100:54321", trusted, "192.168.1.100"},
		{"no trusted proxies", "203.0.113.50", "198.51.100.25", "10.0.0.1:12345", nil, "10.0.0.1"},
		{"RemoteAddr fallback", "", "", "192.168.1.100:54321", trusted, "192.168.1.100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &http.Request{RemoteAddr: tt.remoteAddr, Header: make(http.Header)}
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := clientIP(req, tt.trusted); got != tt.expected {
				t.Errorf("clientIP() = %q, want %q", got, tt.expected)
			}
		})
	}
}
