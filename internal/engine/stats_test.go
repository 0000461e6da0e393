package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitewatch/sitewatch/internal/domain/site"
	"github.com/sitewatch/sitewatch/internal/probe"
)

func TestAggregateEmpty(t *testing.T) {
	st := Aggregate(nil)
	require.Zero(t, st.TotalSites)
	require.Zero(t, st.AverageResponseTimeMs)
	require.Zero(t, st.OverallUptimePercentage)
}

func TestAggregate(t *testing.T) {
	sites := []*site.Site{
		{Status: site.StatusOnline, ResponseTimeMs: 100, TotalChecks: 4, UptimePercentage: 100},
		{Status: site.StatusOnline, ResponseTimeMs: 200, TotalChecks: 2, UptimePercentage: 50},
		{Status: site.StatusWarning, ResponseTimeMs: 50.5, TotalChecks: 1, UptimePercentage: 0},
		{Status: site.StatusOffline},
		{Status: site.StatusPending},
	}
	st := Aggregate(sites)

	require.Equal(t, 5, st.TotalSites)
	require.Equal(t, 2, st.OnlineSites)
	require.Equal(t, 1, st.OfflineSites)
	require.Equal(t, 1, st.WarningSites)
	require.Equal(t, 1, st.PendingSites)

	// Only sites with a measured latency count toward the mean.
	require.Equal(t, 116.83, st.AverageResponseTimeMs)
	// Only sites with at least one check count toward overall uptime.
	require.Equal(t, 50.0, st.OverallUptimePercentage)
}

func TestEngineStatsUsesFreshSnapshot(t *testing.T) {
	ctx := context.Background()
	prober := &scriptedProber{}
	eng, store := newTestEngine(t, prober)

	rec, err := store.Create(ctx, site.NewSite{Name: "a", URL: "https://a.example.com"})
	require.NoError(t, err)

	st, err := eng.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.PendingSites)

	prober.push(rec.URL, probe.Outcome{StatusCode: 200, LatencyMs: 40})
	_, err = eng.CheckOne(ctx, rec.ID)
	require.NoError(t, err)

	st, err = eng.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.OnlineSites)
	require.Zero(t, st.PendingSites)
	require.Equal(t, 40.0, st.AverageResponseTimeMs)
	require.Equal(t, 100.0, st.OverallUptimePercentage)
}
