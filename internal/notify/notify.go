// Package notify publishes build change events to interested consumers.
package notify

import (
	"context"
	"time"
)

// BuildEvent describes one completed build pass.
type BuildEvent struct {
	BuildID    string    `json:"build_id"`
	Outcome    string    `json:"outcome"` // success | failed
	Pages      int       `json:"pages"`
	Failed     []string  `json:"failed,omitempty"`
	DurationMS float64   `json:"duration_ms"`
	At         time.Time `json:"at"`
}

// Notifier delivers build events. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Publish(ctx context.Context, ev BuildEvent) error
	Close() error
}

// Noop is a Notifier that discards everything (default when notifications
// are not configured).
type Noop struct{}

func (Noop) Publish(context.Context, BuildEvent) error	{ return nil }
func (Noop) Close() error				{ return nil }
