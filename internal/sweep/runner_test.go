package sweep

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitewatch/sitewatch/internal/domain/alert"
	"github.com/sitewatch/sitewatch/internal/domain/site"
	"github.com/sitewatch/sitewatch/internal/engine"
	"github.com/sitewatch/sitewatch/internal/probe"
)

type fakeChecker struct {
	results []engine.CheckResult
	err     error
}

func (f *fakeChecker) CheckAll(context.Context) ([]engine.CheckResult, error) {
	return f.results, f.err
}

type recordingPublisher struct {
	events []alert.Transition
	err    error
}

func (p *recordingPublisher) PublishTransition(_ context.Context, t alert.Transition) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, t)
	return nil
}

func result(id string, prev, cur site.Status) engine.CheckResult {
	return engine.CheckResult{
		Site:     &site.Site{ID: id, Name: id, URL: "https://" + id + ".example.com", Status: cur},
		Previous: prev,
		Outcome:  probe.Outcome{StatusCode: 200, LatencyMs: 12},
	}
}

func TestTickPublishesTransitionsOnly(t *testing.T) {
	pub := &recordingPublisher{}
	r := New(nil, &fakeChecker{results: []engine.CheckResult{
		result("steady", site.StatusOnline, site.StatusOnline),
		result("went-down", site.StatusOnline, site.StatusOffline),
		result("came-up", site.StatusOffline, site.StatusOnline),
		{Site: &site.Site{ID: "broken"}, Previous: site.StatusOnline, Err: errors.New("write failed")},
	}}, pub, 0)

	r.tick(context.Background())

	require.Len(t, pub.events, 2)
	require.Equal(t, "went-down", pub.events[0].SiteID)
	require.Equal(t, site.StatusOnline, pub.events[0].OldStatus)
	require.Equal(t, site.StatusOffline, pub.events[0].NewStatus)
	require.Equal(t, "came-up", pub.events[1].SiteID)
}

func TestTickSurvivesPublisherFailure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	r := New(nil, &fakeChecker{results: []engine.CheckResult{
		result("went-down", site.StatusOnline, site.StatusOffline),
	}}, pub, 0)

	// Must not panic or abort; the feed is best effort.
	r.tick(context.Background())
	require.Empty(t, pub.events)
}

func TestTickWithoutPublisher(t *testing.T) {
	r := New(nil, &fakeChecker{results: []engine.CheckResult{
		result("went-down", site.StatusOnline, site.StatusOffline),
	}}, nil, 0)
	r.tick(context.Background())
}

func TestTickSweepError(t *testing.T) {
	r := New(nil, &fakeChecker{err: errors.New("store unavailable")}, nil, 0)
	r.tick(context.Background())
}
