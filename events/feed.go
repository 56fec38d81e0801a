package events

import (
	"context"
	"log/slog"
	"sync"
)

// RefreshFunc is invoked when any row in the subscribed table changes. The
// callback is expected to re-fetch the affected collection; it receives the
// change for logging only.
type RefreshFunc func(change Change)

// Feed dispatches change notifications to per-table refresh callbacks
type Feed struct {
	mu   sync.RWMutex
	subs map[string][]RefreshFunc
}

// NewFeed creates a new Feed
func NewFeed() *Feed {
	return &Feed{subs: make(map[string][]RefreshFunc)}
}

// Subscribe registers a refresh callback for a table
func (f *Feed) Subscribe(table string, fn RefreshFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[table] = append(f.subs[table], fn)
}

// Dispatch invokes every callback registered for the change's table
func (f *Feed) Dispatch(change Change) {
	f.mu.RLock()
	fns := f.subs[change.Table]
	f.mu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}

// LocalBroker is a Publisher that dispatches synchronously to an in-process
// Feed. Used in tests and single-process deployments where Redis is not
// configured.
type LocalBroker struct {
	feed *Feed
}

// NewLocalBroker creates a new LocalBroker over the given feed
func NewLocalBroker(feed *Feed) *LocalBroker {
	return &LocalBroker{feed: feed}
}

// Publish dispatches the change to the local feed
func (b *LocalBroker) Publish(ctx context.Context, change Change) error {
	b.feed.Dispatch(change)
	return nil
}

// Close is a no-op for the local broker
func (b *LocalBroker) Close() error {
	return nil
}

// NoopPublisher discards all changes. Used when eventing is disabled.
type NoopPublisher struct{}

// NewNoopPublisher creates a new NoopPublisher
func NewNoopPublisher() *NoopPublisher {
	slog.Info("Change-feed publishing disabled, using noop publisher")
	return &NoopPublisher{}
}

// Publish discards the change
func (p *NoopPublisher) Publish(ctx context.Context, change Change) error {
	return nil
}

// Close is a no-op
func (p *NoopPublisher) Close() error {
	return nil
}
