package callback

import (
	"context"
	"time"
)

// AuthCompleteEvent is emitted once a redirect has been exchanged and the
// token stored.
type AuthCompleteEvent struct {
	ExpiresAt       time.Time
	HasRefreshToken bool
}

// Notifier is told about completed authentications.
type Notifier interface {
	NotifyAuthComplete(ctx context.Context, event AuthCompleteEvent)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event AuthCompleteEvent)

// NotifyAuthComplete calls f.
func (f NotifierFunc) NotifyAuthComplete(ctx context.Context, event AuthCompleteEvent) {
	f(ctx, event)
}

type nopNotifier struct{}

func (nopNotifier) NotifyAuthComplete(context.Context, AuthCompleteEvent) {}
