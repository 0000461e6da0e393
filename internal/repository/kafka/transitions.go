package kafka

import (
	"context"

	"github.com/sitewatch/sitewatch/internal/domain/alert"
)

// TransitionEvents publishes status transitions keyed by site id, so
// every event for one site lands on the same partition in order.
type TransitionEvents struct {
	p *Producer
}

var _ alert.Publisher = (*TransitionEvents)(nil)

func NewTransitionEvents(p *Producer) *TransitionEvents { return &TransitionEvents{p: p} }

func (e *TransitionEvents) PublishTransition(ctx context.Context, t alert.Transition) error {
	return e.p.PublishJSON(ctx, []byte(t.SiteID), t)
}
