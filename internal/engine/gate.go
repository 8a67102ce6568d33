package engine

import (
	"net/url"
	"strings"
)

// Gate decides whether remote (CDN or hosted) sources may be contacted.
type Gate struct {
	Secure bool
	OptIn  bool
}

// NewGate derives the gate from the serving origin and the explicit opt-in flag.
func NewGate(origin string, optIn bool) Gate {
	secure := false
	if u, err := url.Parse(strings.TrimSpace(origin)); err == nil {
		secure = u.Scheme == "https"
	}
	return Gate{Secure: secure, OptIn: optIn}
}

// RemoteAllowed reports whether remote access is permitted.
func (g Gate) RemoteAllowed() bool { return g.Secure || g.OptIn }
