// Package sweep drives periodic full sweeps of the registry. The engine
// never self-schedules; this runner is the invoker that decides when.
package sweep

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/domain/alert"
	"github.com/sitewatch/sitewatch/internal/domain/site"
	"github.com/sitewatch/sitewatch/internal/engine"
	"github.com/sitewatch/sitewatch/internal/obs/retry"
)

var (
	mSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitewatch_sweeps_total", Help: "Completed sweeps",
	})
	mChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitewatch_checks_total", Help: "Checks by resulting status",
	}, []string{"status"})
	mCheckErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitewatch_check_errors_total", Help: "Checks that failed to persist",
	})
	mTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitewatch_transitions_total", Help: "Status transitions observed",
	})
	mLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitewatch_probe_latency_seconds",
		Help:    "Probe latency",
		Buckets: prometheus.DefBuckets,
	})
	mSweepDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitewatch_sweep_duration_seconds",
		Help:    "Full sweep duration",
		Buckets: prometheus.DefBuckets,
	})
)

// Checker is the slice of the engine the runner needs.
type Checker interface {
	CheckAll(ctx context.Context) ([]engine.CheckResult, error)
}

type Runner struct {
	Log   *zap.Logger
	Eng   Checker
	Pub   alert.Publisher // nil disables the transition feed
	Every time.Duration
	clk   func() time.Time
}

func New(log *zap.Logger, eng Checker, pub alert.Publisher, every time.Duration) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		Log:   log,
		Eng:   eng,
		Pub:   pub,
		Every: every,
		clk:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	results, err := r.Eng.CheckAll(ctx)
	if err != nil {
		r.Log.Warn("sweep error", zap.Error(err))
	}

	var online, offline, warning, errs int
	for _, res := range results {
		if res.Err != nil {
			errs++
			mCheckErrors.Inc()
			continue
		}
		mChecks.WithLabelValues(string(res.Site.Status)).Inc()
		mLatency.Observe(res.Outcome.LatencyMs / 1000)
		switch res.Site.Status {
		case site.StatusOnline:
			online++
		case site.StatusWarning:
			warning++
		default:
			offline++
		}
		if res.Transition() {
			mTransitions.Inc()
			r.publish(ctx, res)
		}
	}

	mSweeps.Inc()
	mSweepDur.Observe(time.Since(start).Seconds())
	if len(results) > 0 || err != nil {
		r.Log.Info("sweep done",
			zap.Int("checked", len(results)),
			zap.Int("online", online),
			zap.Int("warning", warning),
			zap.Int("offline", offline),
			zap.Int("errors", errs),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func (r *Runner) publish(ctx context.Context, res engine.CheckResult) {
	if r.Pub == nil {
		return
	}
	ev := alert.Transition{
		SiteID:    res.Site.ID,
		SiteName:  res.Site.Name,
		URL:       res.Site.URL,
		OldStatus: res.Previous,
		NewStatus: res.Site.Status,
		At:        r.clk(),
	}
	err := retry.Do(ctx, func() error {
		return r.Pub.PublishTransition(ctx, ev)
	}, retry.DefaultPublishPolicy(r.Log))
	if err != nil {
		// The sweep result is already committed; the feed is best effort.
		r.Log.Warn("transition publish failed",
			zap.String("site_id", ev.SiteID),
			zap.String("old", string(ev.OldStatus)),
			zap.String("new", string(ev.NewStatus)),
			zap.Error(err),
		)
	}
}

func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Every)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}
