package site

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://example.com", "https://example.com", true},
		{"  http://example.com/path?q=1  ", "http://example.com/path?q=1", true},
		{"ftp://example.com", "", false},
		{"example.com", "", false},
		{"", "", false},
		{"https://", "", false},
	} {
		got, err := NormalizeURL(tc.in)
		if !tc.ok {
			require.ErrorIs(t, err, ErrInvalidInput, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		require.Equal(t, tc.want, got)
	}
}

func TestClampInterval(t *testing.T) {
	require.Equal(t, 60, ClampInterval(0))
	require.Equal(t, 60, ClampInterval(59))
	require.Equal(t, 60, ClampInterval(60))
	require.Equal(t, 300, ClampInterval(300))
	require.Equal(t, 60, ClampInterval(-5))
}

func TestRecomputeUptime(t *testing.T) {
	s := &Site{}
	s.RecomputeUptime()
	require.Equal(t, 100.0, s.UptimePercentage, "never-checked site reports 100")

	s.TotalChecks, s.SuccessfulChecks, s.FailedChecks = 3, 1, 2
	s.RecomputeUptime()
	require.Equal(t, 33.33, s.UptimePercentage)

	s.TotalChecks, s.SuccessfulChecks, s.FailedChecks = 2, 1, 1
	s.RecomputeUptime()
	require.Equal(t, 50.0, s.UptimePercentage)
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	msg := "HTTP 503 - Server Error"
	s := &Site{
		ID:           "a",
		LastChecked:  &now,
		ErrorMessage: &msg,
		TLS:          &TLSInfo{Issuer: "CN=x"},
	}
	cp := s.Clone()
	*cp.LastChecked = now.Add(time.Hour)
	*cp.ErrorMessage = "changed"
	cp.TLS.Issuer = "CN=y"

	require.Equal(t, now, *s.LastChecked)
	require.Equal(t, msg, *s.ErrorMessage)
	require.Equal(t, "CN=x", s.TLS.Issuer)
}
