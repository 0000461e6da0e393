package engine

import (
	"context"

	"github.com/sitewatch/sitewatch/internal/domain/site"
)

// Stats are fleet-wide aggregates over the current registry snapshot.
// They are derived on demand and never persisted.
type Stats struct {
	TotalSites              int     `json:"total_sites"`
	OnlineSites             int     `json:"online_sites"`
	OfflineSites            int     `json:"offline_sites"`
	WarningSites            int     `json:"warning_sites"`
	PendingSites            int     `json:"pending_sites"`
	AverageResponseTimeMs   float64 `json:"average_response_time"`
	OverallUptimePercentage float64 `json:"overall_uptime"`
}

// Aggregate computes the fleet stats in a single pass. The response-time
// mean covers only sites that have a measured latency, and the uptime
// mean only sites that have been checked at least once.
func Aggregate(sites []*site.Site) Stats {
	st := Stats{TotalSites: len(sites)}

	var (
		latencySum float64
		responsive int
		uptimeSum  float64
		checked    int
	)
	for _, s := range sites {
		switch s.Status {
		case site.StatusOnline:
			st.OnlineSites++
		case site.StatusOffline:
			st.OfflineSites++
		case site.StatusWarning:
			st.WarningSites++
		default:
			st.PendingSites++
		}
		if s.ResponseTimeMs > 0 {
			latencySum += s.ResponseTimeMs
			responsive++
		}
		if s.TotalChecks > 0 {
			uptimeSum += s.UptimePercentage
			checked++
		}
	}
	if responsive > 0 {
		st.AverageResponseTimeMs = site.Round2(latencySum / float64(responsive))
	}
	if checked > 0 {
		st.OverallUptimePercentage = site.Round2(uptimeSum / float64(checked))
	}
	return st
}

// Stats aggregates over a fresh snapshot from the store.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	sites, err := e.store.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Aggregate(sites), nil
}
