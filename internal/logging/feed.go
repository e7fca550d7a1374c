package logging

import (
	"context"
	"sync"
)

// Feed fans events out to an ordered list of subscribers. Delivery order is
// attach order, so a given input always produces the same observation
// sequence. Subscribers run synchronously on the publishing goroutine and
// must not block.
type Feed struct {
	mu          sync.RWMutex
	subscribers []namedSubscriber
}

type namedSubscriber struct {
	name string
	pub  Publisher
}

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Attach appends a subscriber to the delivery order. Attaching under an
// already-used name replaces the previous subscriber in place, preserving
// its position.
func (f *Feed) Attach(name string, pub Publisher) {
	if f == nil || name == "" || pub == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, sub := range f.subscribers {
		if sub.name == name {
			f.subscribers[i].pub = pub
			return
		}
	}
	f.subscribers = append(f.subscribers, namedSubscriber{name: name, pub: pub})
}

// Detach removes a subscriber from the delivery order.
func (f *Feed) Detach(name string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, sub := range f.subscribers {
		if sub.name == name {
			f.subscribers = append(f.subscribers[:i], f.subscribers[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to every subscriber in attach order.
func (f *Feed) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f.mu.RLock()
	subs := make([]namedSubscriber, len(f.subscribers))
	copy(subs, f.subscribers)
	f.mu.RUnlock()
	for _, sub := range subs {
		sub.pub.Publish(ctx, event)
	}
}

var _ Publisher = (*Feed)(nil)
