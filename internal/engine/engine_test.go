package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitewatch/sitewatch/internal/domain/site"
	"github.com/sitewatch/sitewatch/internal/probe"
	filestore "github.com/sitewatch/sitewatch/internal/repository/file"
)

// scriptedProber returns queued outcomes per url, so checks are
// deterministic without real sockets.
type scriptedProber struct {
	mu      sync.Mutex
	queue   map[string][]probe.Outcome
	block   chan struct{} // when set, Probe waits until closed
	entered chan struct{} // when set, closed once the first Probe starts
	once    sync.Once
}

func (p *scriptedProber) push(url string, out probe.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queue == nil {
		p.queue = map[string][]probe.Outcome{}
	}
	p.queue[url] = append(p.queue[url], out)
}

func (p *scriptedProber) Probe(_ context.Context, url string) probe.Outcome {
	if p.entered != nil {
		p.once.Do(func() { close(p.entered) })
	}
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	q := p.queue[url]
	if len(q) == 0 {
		return probe.Outcome{TransportError: "no scripted outcome for " + url}
	}
	out := q[0]
	p.queue[url] = q[1:]
	return out
}

func newTestEngine(t *testing.T, p probe.Prober) (*Engine, site.Store) {
	t.Helper()
	store, err := filestore.New(filepath.Join(t.TempDir(), "sites.json"))
	require.NoError(t, err)
	return New(store, p, nil, 0), store
}

func requireCounterInvariant(t *testing.T, s *site.Site) {
	t.Helper()
	require.Equal(t, s.TotalChecks, s.SuccessfulChecks+s.FailedChecks)
}

func TestCheckOneOnline(t *testing.T) {
	ctx := context.Background()
	prober := &scriptedProber{}
	eng, store := newTestEngine(t, prober)

	rec, err := store.Create(ctx, site.NewSite{Name: "Example", URL: "https://example.com"})
	require.NoError(t, err)
	prober.push(rec.URL, probe.Outcome{StatusCode: 200, LatencyMs: 120})

	res, err := eng.CheckOne(ctx, rec.ID)
	require.NoError(t, err)

	require.Equal(t, site.StatusPending, res.Previous)
	require.True(t, res.Transition())
	got := res.Site
	require.Equal(t, site.StatusOnline, got.Status)
	require.Equal(t, 200, got.StatusCode)
	require.Equal(t, 120.0, got.ResponseTimeMs)
	require.EqualValues(t, 1, got.TotalChecks)
	require.EqualValues(t, 1, got.SuccessfulChecks)
	require.EqualValues(t, 0, got.FailedChecks)
	require.Equal(t, 100.0, got.UptimePercentage)
	require.Nil(t, got.ErrorMessage)
	require.NotNil(t, got.LastChecked)
	require.NotNil(t, got.LastOnline)
	require.Nil(t, got.LastOffline)
	requireCounterInvariant(t, got)

	// The stored record matches what was returned.
	stored, err := store.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, got, stored)
}

func TestCheckOneServerErrorAfterOnline(t *testing.T) {
	ctx := context.Background()
	prober := &scriptedProber{}
	eng, store := newTestEngine(t, prober)

	rec, err := store.Create(ctx, site.NewSite{Name: "Example", URL: "https://example.com"})
	require.NoError(t, err)
	prober.push(rec.URL, probe.Outcome{StatusCode: 200, LatencyMs: 120})
	prober.push(rec.URL, probe.Outcome{StatusCode: 500, LatencyMs: 80})

	_, err = eng.CheckOne(ctx, rec.ID)
	require.NoError(t, err)
	res, err := eng.CheckOne(ctx, rec.ID)
	require.NoError(t, err)

	require.Equal(t, site.StatusOnline, res.Previous)
	require.True(t, res.Transition())
	got := res.Site
	require.Equal(t, site.StatusOffline, got.Status)
	require.EqualValues(t, 2, got.TotalChecks)
	require.EqualValues(t, 1, got.SuccessfulChecks)
	require.EqualValues(t, 1, got.FailedChecks)
	require.Equal(t, 50.0, got.UptimePercentage)
	require.NotNil(t, got.ErrorMessage)
	require.Equal(t, "HTTP 500 - Server Error", *got.ErrorMessage)
	require.NotNil(t, got.LastOffline)
	requireCounterInvariant(t, got)
}

func TestCheckOneWarningCountsAsFailed(t *testing.T) {
	ctx := context.Background()
	prober := &scriptedProber{}
	eng, store := newTestEngine(t, prober)

	rec, err := store.Create(ctx, site.NewSite{Name: "Example", URL: "https://example.com"})
	require.NoError(t, err)
	prober.push(rec.URL, probe.Outcome{StatusCode: 404, LatencyMs: 10})

	res, err := eng.CheckOne(ctx, rec.ID)
	require.NoError(t, err)
	got := res.Site
	require.Equal(t, site.StatusWarning, got.Status)
	require.EqualValues(t, 1, got.FailedChecks)
	require.Equal(t, "HTTP 404 - Client Error", *got.ErrorMessage)
	require.Equal(t, 0.0, got.UptimePercentage)
	requireCounterInvariant(t, got)
}

func TestCheckOneTransportError(t *testing.T) {
	ctx := context.Background()
	prober := &scriptedProber{}
	eng, store := newTestEngine(t, prober)

	rec, err := store.Create(ctx, site.NewSite{Name: "Example", URL: "https://example.com"})
	require.NoError(t, err)
	prober.push(rec.URL, probe.Outcome{TransportError: "context deadline exceeded"})

	res, err := eng.CheckOne(ctx, rec.ID)
	require.NoError(t, err)
	got := res.Site
	require.Equal(t, site.StatusOffline, got.Status)
	require.Zero(t, got.StatusCode)
	require.Equal(t, "context deadline exceeded", *got.ErrorMessage)
}

func TestCheckOneNotFound(t *testing.T) {
	eng, _ := newTestEngine(t, &scriptedProber{})
	_, err := eng.CheckOne(context.Background(), "missing")
	require.ErrorIs(t, err, site.ErrNotFound)
}

func TestCheckOneKeepsTLSInfo(t *testing.T) {
	ctx := context.Background()
	prober := &scriptedProber{}
	eng, store := newTestEngine(t, prober)

	rec, err := store.Create(ctx, site.NewSite{Name: "Example", URL: "https://example.com"})
	require.NoError(t, err)
	tls := &site.TLSInfo{
		Issuer:    "CN=Test CA",
		Subject:   "CN=example.com",
		ValidFrom: time.Now().Add(-time.Hour),
		ValidTo:   time.Now().Add(time.Hour),
	}
	prober.push(rec.URL, probe.Outcome{StatusCode: 200, LatencyMs: 5, TLS: tls})

	res, err := eng.CheckOne(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Site.TLS)
	require.Equal(t, "CN=Test CA", res.Site.TLS.Issuer)
}

func TestCheckAllSkipsInactive(t *testing.T) {
	ctx := context.Background()
	prober := &scriptedProber{}
	eng, store := newTestEngine(t, prober)

	a, err := store.Create(ctx, site.NewSite{Name: "a", URL: "https://a.example.com"})
	require.NoError(t, err)
	b, err := store.Create(ctx, site.NewSite{Name: "b", URL: "https://b.example.com"})
	require.NoError(t, err)
	c, err := store.Create(ctx, site.NewSite{Name: "c", URL: "https://c.example.com"})
	require.NoError(t, err)

	inactive := false
	_, err = store.Update(ctx, b.ID, site.Update{Active: &inactive})
	require.NoError(t, err)

	prober.push(a.URL, probe.Outcome{StatusCode: 200, LatencyMs: 1})
	prober.push(c.URL, probe.Outcome{StatusCode: 503, LatencyMs: 1})

	results, err := eng.CheckAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	untouched, err := store.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, site.StatusPending, untouched.Status)
	require.Zero(t, untouched.TotalChecks)
	require.Nil(t, untouched.LastChecked)
}

func TestCheckAllContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	prober := &scriptedProber{}
	eng, store := newTestEngine(t, prober)

	a, err := store.Create(ctx, site.NewSite{Name: "a", URL: "https://a.example.com"})
	require.NoError(t, err)
	b, err := store.Create(ctx, site.NewSite{Name: "b", URL: "https://b.example.com"})
	require.NoError(t, err)

	prober.push(a.URL, probe.Outcome{TransportError: "connection refused"})
	prober.push(b.URL, probe.Outcome{StatusCode: 200, LatencyMs: 3})

	results, err := eng.CheckAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2, "a dead site must not abort the sweep")
	require.Equal(t, site.StatusOffline, results[0].Site.Status)
	require.Equal(t, site.StatusOnline, results[1].Site.Status)
}

func TestCheckOneDeduplicatesInFlight(t *testing.T) {
	ctx := context.Background()
	prober := &scriptedProber{block: make(chan struct{}), entered: make(chan struct{})}
	eng, store := newTestEngine(t, prober)

	rec, err := store.Create(ctx, site.NewSite{Name: "a", URL: "https://a.example.com"})
	require.NoError(t, err)
	prober.push(rec.URL, probe.Outcome{StatusCode: 200, LatencyMs: 1})

	done := make(chan error, 1)
	go func() {
		_, err := eng.CheckOne(ctx, rec.ID)
		done <- err
	}()
	<-prober.entered // first check is mid-probe, in-flight mark held

	_, err = eng.CheckOne(ctx, rec.ID)
	require.ErrorIs(t, err, ErrCheckInFlight)

	close(prober.block)
	require.NoError(t, <-done)
}
