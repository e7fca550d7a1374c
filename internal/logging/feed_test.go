package logging

import (
	"context"
	"testing"
)

func TestFeedDeliversInAttachOrder(t *testing.T) {
	feed := NewFeed()
	var order []string
	feed.Attach("first", PublisherFunc(func(context.Context, Event) {
		order = append(order, "first")
	}))
	feed.Attach("second", PublisherFunc(func(context.Context, Event) {
		order = append(order, "second")
	}))

	feed.Publish(context.Background(), Event{Type: "combat.test"})
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected attach-order delivery, got %v", order)
	}
}

func TestFeedAttachReplacesInPlace(t *testing.T) {
	feed := NewFeed()
	var order []string
	feed.Attach("a", PublisherFunc(func(context.Context, Event) {
		order = append(order, "a-old")
	}))
	feed.Attach("b", PublisherFunc(func(context.Context, Event) {
		order = append(order, "b")
	}))
	feed.Attach("a", PublisherFunc(func(context.Context, Event) {
		order = append(order, "a-new")
	}))

	feed.Publish(context.Background(), Event{})
	if len(order) != 2 || order[0] != "a-new" || order[1] != "b" {
		t.Fatalf("expected replacement to keep the original position, got %v", order)
	}
}

func TestFeedDetachStopsDelivery(t *testing.T) {
	feed := NewFeed()
	delivered := 0
	feed.Attach("gone", PublisherFunc(func(context.Context, Event) { delivered++ }))
	feed.Detach("gone")

	feed.Publish(context.Background(), Event{})
	if delivered != 0 {
		t.Fatalf("expected no delivery after detach, got %d", delivered)
	}
}
