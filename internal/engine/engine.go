// Package engine orchestrates checks: fetch a record, probe it with the
// registry lock released, classify the outcome and write the result
// back atomically.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/domain/site"
	"github.com/sitewatch/sitewatch/internal/probe"
)

// ErrCheckInFlight is returned when a check for the same site id is
// already running; the caller keeps the at-most-one guarantee.
var ErrCheckInFlight = errors.New("check already in flight")

// CheckResult pairs the updated record with the status it replaced so a
// caller (e.g. an alerting collaborator) can detect a transition. Err is
// set when the write-back failed; the probed outcome is still attached.
type CheckResult struct {
	Site     *site.Site
	Previous site.Status
	Outcome  probe.Outcome
	Err      error
}

// Transition reports whether this check changed the site's status.
func (r CheckResult) Transition() bool {
	return r.Err == nil && r.Site != nil && r.Previous != r.Site.Status
}

type Engine struct {
	store  site.Store
	prober probe.Prober
	log    *zap.Logger
	clk    func() time.Time
	pause  time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(store site.Store, p probe.Prober, log *zap.Logger, pause time.Duration) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:    store,
		prober:   p,
		log:      log,
		clk:      func() time.Time { return time.Now().UTC() },
		pause:    pause,
		inflight: make(map[string]struct{}),
	}
}

// WithClock overrides the timestamp source.
func (e *Engine) WithClock(clk func() time.Time) *Engine {
	if clk != nil {
		e.clk = clk
	}
	return e
}

func (e *Engine) begin(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[id]; busy {
		return false
	}
	e.inflight[id] = struct{}{}
	return true
}

func (e *Engine) end(id string) {
	e.mu.Lock()
	delete(e.inflight, id)
	e.mu.Unlock()
}

// CheckOne probes a single site and applies the result to its record.
// The probe runs without holding the registry lock; only the final
// read-modify-write is serialized by the store.
func (e *Engine) CheckOne(ctx context.Context, id string) (*CheckResult, error) {
	if !e.begin(id) {
		return nil, fmt.Errorf("%w: %s", ErrCheckInFlight, id)
	}
	defer e.end(id)

	cur, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tr := otel.Tracer("engine")
	ctx, span := tr.Start(ctx, "engine.check",
		trace.WithAttributes(
			attribute.String("site.id", id),
			attribute.String("site.url", cur.URL),
		),
	)
	defer span.End()

	out := e.prober.Probe(ctx, cur.URL)
	status, msg := probe.Classify(out)
	now := e.clk()

	prev := cur.Status
	updated, err := e.store.Mutate(ctx, id, func(s *site.Site) error {
		prev = s.Status
		checked := now
		s.Status = status
		s.StatusCode = out.StatusCode
		s.ResponseTimeMs = out.LatencyMs
		s.ErrorMessage = msg
		s.TLS = out.TLS
		s.LastChecked = &checked
		s.TotalChecks++
		if status == site.StatusOnline {
			s.SuccessfulChecks++
			online := now
			s.LastOnline = &online
		} else {
			s.FailedChecks++
			offline := now
			s.LastOffline = &offline
		}
		s.RecomputeUptime()
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("apply check result: %w", err)
	}

	span.SetAttributes(attribute.String("site.status", string(status)))
	e.log.Debug("site checked",
		zap.String("site_id", id),
		zap.String("status", string(status)),
		zap.Int("code", out.StatusCode),
		zap.Float64("latency_ms", out.LatencyMs),
	)
	return &CheckResult{Site: updated, Previous: prev, Outcome: out}, nil
}

// CheckAll sweeps every active site in registry order, pausing between
// checks so neither the probed hosts nor the outbound socket pool are
// saturated. A single site's failure never aborts the sweep: persistence
// errors are carried per-site in the result list, and sites deleted or
// already being checked mid-sweep are skipped.
func (e *Engine) CheckAll(ctx context.Context) ([]CheckResult, error) {
	tr := otel.Tracer("engine")
	ctx, span := tr.Start(ctx, "engine.sweep")
	defer span.End()

	sites, err := e.store.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list sites: %w", err)
	}

	results := make([]CheckResult, 0, len(sites))
	first := true
	for _, s := range sites {
		if !s.Active {
			continue
		}
		if !first && e.pause > 0 {
			t := time.NewTimer(e.pause)
			select {
			case <-ctx.Done():
				t.Stop()
				return results, ctx.Err()
			case <-t.C:
			}
		}
		first = false

		res, err := e.CheckOne(ctx, s.ID)
		switch {
		case err == nil:
			results = append(results, *res)
		case errors.Is(err, site.ErrNotFound), errors.Is(err, ErrCheckInFlight):
			e.log.Debug("sweep skip", zap.String("site_id", s.ID), zap.Error(err))
		default:
			e.log.Warn("sweep check failed", zap.String("site_id", s.ID), zap.Error(err))
			results = append(results, CheckResult{Site: s, Previous: s.Status, Err: err})
		}
	}

	span.SetAttributes(attribute.Int("sweep.checked", len(results)))
	return results, nil
}
