package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sitewatch/sitewatch/internal/domain/site"
)

// Outcome is the raw result of a single probe. Exactly one of
// TransportError or StatusCode carries meaning: a transport-level
// failure (DNS, connect, TLS handshake, timeout) leaves the code at 0.
type Outcome struct {
	StatusCode     int
	LatencyMs      float64
	TLS            *site.TLSInfo
	TransportError string
}

type Prober interface {
	Probe(ctx context.Context, url string) Outcome
}

type Config struct {
	Timeout         time.Duration
	ConnectTimeout  time.Duration
	UserAgent       string
	MaxRedirects    int
	FollowRedirects bool
	VerifyTLS       bool
}

type HTTPProber struct {
	c   *http.Client
	cfg Config
}

var _ Prober = (*HTTPProber)(nil)

// New builds a prober around a tuned http.Client. TLS verification is
// off by default so a self-signed or misconfigured host still answers
// the reachability question and still yields certificate metadata.
func New(cfg Config) *HTTPProber {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifyTLS,
			MinVersion:         tls.VersionTLS12,
		},
	}
	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(transport),
	}
	if cfg.FollowRedirects {
		max := cfg.MaxRedirects
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= max {
				return fmt.Errorf("stopped after %d redirects", max)
			}
			return nil
		}
	} else {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return &HTTPProber{c: client, cfg: cfg}
}

// Probe issues one HEAD request and never returns an error: transport
// failures are reported inside the Outcome for the classifier to map.
func (p *HTTPProber) Probe(ctx context.Context, rawURL string) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return Outcome{TransportError: err.Error()}
	}
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	start := time.Now()
	resp, err := p.c.Do(req)
	lat := site.Round2(float64(time.Since(start)) / float64(time.Millisecond))
	if err != nil {
		return Outcome{LatencyMs: lat, TransportError: err.Error()}
	}
	defer resp.Body.Close()

	out := Outcome{StatusCode: resp.StatusCode, LatencyMs: lat}
	if state := resp.TLS; state != nil && len(state.PeerCertificates) > 0 {
		cert := state.PeerCertificates[0]
		out.TLS = &site.TLSInfo{
			Issuer:    cert.Issuer.String(),
			Subject:   cert.Subject.String(),
			ValidFrom: cert.NotBefore,
			ValidTo:   cert.NotAfter,
		}
	}
	return out
}
