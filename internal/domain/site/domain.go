package site

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
)

// Status is the classified state of a monitored site.
type Status string

const (
	StatusPending Status = "pending"
	StatusOnline  Status = "online"
	StatusWarning Status = "warning"
	StatusOffline Status = "offline"
)

// MinCheckInterval is the floor, in seconds, applied to check intervals
// on every write.
const MinCheckInterval = 60

// TLSInfo carries certificate metadata as presented by the peer during
// the probe handshake. It is observed, never validated.
type TLSInfo struct {
	Issuer    string    `json:"issuer"`
	Subject   string    `json:"subject"`
	ValidFrom time.Time `json:"valid_from"`
	ValidTo   time.Time `json:"valid_to"`
}

type Site struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	URL              string     `json:"url"`
	Status           Status     `json:"status"`
	StatusCode       int        `json:"status_code"`
	ResponseTimeMs   float64    `json:"response_time"`
	LastChecked      *time.Time `json:"last_checked"`
	LastOnline       *time.Time `json:"last_online"`
	LastOffline      *time.Time `json:"last_offline"`
	CheckInterval    int        `json:"check_interval"`
	Active           bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	UptimePercentage float64    `json:"uptime_percentage"`
	TotalChecks      int64      `json:"total_checks"`
	SuccessfulChecks int64      `json:"successful_checks"`
	FailedChecks     int64      `json:"failed_checks"`
	TLS              *TLSInfo   `json:"ssl_info"`
	DomainExpires    *time.Time `json:"domain_expires"`
	ErrorMessage     *string    `json:"error_message"`
}

// NewSite is the registration candidate. Everything else on the record
// is derived at creation time.
type NewSite struct {
	Name          string
	URL           string
	CheckInterval int
}

// Update carries the fields an explicit edit may touch. Counters,
// status and timestamps are reachable only through Store.Mutate.
type Update struct {
	Name          *string
	URL           *string
	CheckInterval *int
	Active        *bool
}

// ClampInterval applies the MinCheckInterval floor.
func ClampInterval(sec int) int {
	if sec < MinCheckInterval {
		return MinCheckInterval
	}
	return sec
}

// NormalizeURL validates that raw parses as an absolute http/https URL
// and returns it trimmed. A failure wraps ErrInvalidInput.
func NormalizeURL(raw string) (string, error) {
	t := strings.TrimSpace(raw)
	u, err := url.Parse(t)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not an absolute http(s) url", ErrInvalidInput, raw)
	}
	return t, nil
}

// RecomputeUptime refreshes the derived uptime percentage from the
// counters. A never-checked site reports 100.
func (s *Site) RecomputeUptime() {
	if s.TotalChecks == 0 {
		s.UptimePercentage = 100
		return
	}
	s.UptimePercentage = Round2(float64(s.SuccessfulChecks) / float64(s.TotalChecks) * 100)
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clone returns a deep copy so callers never alias store-owned memory.
func (s *Site) Clone() *Site {
	cp := *s
	cp.LastChecked = copyTime(s.LastChecked)
	cp.LastOnline = copyTime(s.LastOnline)
	cp.LastOffline = copyTime(s.LastOffline)
	cp.DomainExpires = copyTime(s.DomainExpires)
	if s.TLS != nil {
		tls := *s.TLS
		cp.TLS = &tls
	}
	if s.ErrorMessage != nil {
		msg := *s.ErrorMessage
		cp.ErrorMessage = &msg
	}
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
