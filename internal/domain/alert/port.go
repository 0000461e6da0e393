package alert

import (
	"context"
	"time"

	"github.com/sitewatch/sitewatch/internal/domain/site"
)

// Transition is a status change observed between two consecutive checks
// of the same site. Consumers (e.g. a notifier) decide what to do with
// it; the monitoring engine only supplies the data.
type Transition struct {
	SiteID    string      `json:"site_id"`
	SiteName  string      `json:"site_name"`
	URL       string      `json:"url"`
	OldStatus site.Status `json:"old_status"`
	NewStatus site.Status `json:"new_status"`
	At        time.Time   `json:"at"`
}

type Publisher interface {
	PublishTransition(ctx context.Context, t Transition) error
}
