package probe

import (
	"fmt"

	"github.com/sitewatch/sitewatch/internal/domain/site"
)

// Classify maps a raw outcome onto the site state machine. A 4xx means
// the host is reachable and serving but the resource is wrong, which is
// a different operational signal than a dead origin, hence the warning
// state instead of a binary up/down.
func Classify(o Outcome) (site.Status, *string) {
	if o.TransportError != "" {
		msg := o.TransportError
		return site.StatusOffline, &msg
	}
	switch {
	case o.StatusCode >= 200 && o.StatusCode < 400:
		return site.StatusOnline, nil
	case o.StatusCode >= 400 && o.StatusCode < 500:
		msg := fmt.Sprintf("HTTP %d - Client Error", o.StatusCode)
		return site.StatusWarning, &msg
	default:
		msg := fmt.Sprintf("HTTP %d - Server Error", o.StatusCode)
		return site.StatusOffline, &msg
	}
}
