package server

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"

	"github.com/lawnchairsociety/clanksim/internal/config"
)

// SessionLimiter caps concurrent simulation sessions per client IP and in
// total. Each session keeps every worker busy, so the limits bound CPU use.
type SessionLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

// NewSessionLimiter creates a limiter from the connections config. Zero
// limits are unlimited.
func NewSessionLimiter(cfg config.ConnectionsConfig) *SessionLimiter {
	return &SessionLimiter{
		perIP:    make(map[string]int),
		maxPerIP: cfg.MaxPerIP,
		maxTotal: cfg.MaxTotal,
	}
}

// TryAcquire reserves a session slot for ip, or reports false if either
// limit is reached.
func (l *SessionLimiter) TryAcquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxTotal > 0 && l.total >= l.maxTotal {
		return false
	}
	if l.maxPerIP > 0 && l.perIP[ip] >= l.maxPerIP {
		return false
	}

	l.perIP[ip]++
	l.total++
	return true
}

// Release frees a slot acquired for ip.
func (l *SessionLimiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.perIP[ip] > 0 {
		l.perIP[ip]--
		if l.perIP[ip] == 0 {
			delete(l.perIP, ip)
		}
	}
	if l.total > 0 {
		l.total--
	}
}

// Active returns the number of running sessions and of distinct client IPs.
func (l *SessionLimiter) Active() (sessions, ips int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total, len(l.perIP)
}

// clientIP returns the originating client address of r. Proxy headers are
// only honoured when the direct peer is one of the trusted proxies; then the
// client is the rightmost X-Forwarded-For entry that is not itself trusted.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := hostOnly(r.RemoteAddr)
	if !isTrusted(peer, trusted) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// "client, proxy1, proxy2"
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			ip := strings.TrimSpace(hops[i])
			if ip != "" && !isTrusted(ip, trusted) {
				return ip
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

// isTrusted reports whether ip falls inside one of the trusted prefixes.
func isTrusted(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// hostOnly strips the port from an ip:port address.
func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
