package node

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCredentials is RAM-only: nothing in this package ever writes it
// to disk, and a process restart always starts with a zero value. It is
// mutated only by a Hub response or an explicit clear.
type SessionCredentials struct {
	SessionToken       string
	ExpiresAtWallString string
	ExpiresAtMs        int64
}

func (s *SessionCredentials) valid() bool {
	return s.SessionToken != ""
}

func (s *SessionCredentials) clear() {
	s.SessionToken = ""
	s.ExpiresAtWallString = ""
	s.ExpiresAtMs = 0
}

// PairingMaterial is RAM-only, populated from a Hello response and cleared
// on successful pairing or approval, on any failed pair submission, on
// Hello 410, and on a 401/403/410 from approve or session poll.
type PairingMaterial struct {
	Code      string
	ExpiresAt string
	Valid     bool
}

func (p *PairingMaterial) clear() {
	p.Code = ""
	p.ExpiresAt = ""
	p.Valid = false
}

// RegisteredNode holds the Hub-assigned identity for this process. NodeID
// is canonical only when it arrives from the Hub; this package never
// invents one locally.
type RegisteredNode struct {
	NodeID        string
	NodeAuthToken string
	TunnelURL     string
	TunnelID      string
	TunnelHost    string
}

// diagnosticTokenExpiry makes a best-effort, unverified attempt to read an
// `exp` claim out of a session token that happens to be JWT-shaped. It is
// never used to gate a transition -- the Hub's own GRANTED/ttl_seconds
// responses are authoritative per spec -- only to annotate a log line so
// an operator sees "this token looks expired" without waiting on a 401.
func diagnosticTokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
