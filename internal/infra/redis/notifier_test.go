package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestNotifierDeliversSignals(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	notifier := NewNotifier(newClient(mr), nil)
	ctx := context.Background()

	signals, cancel, err := notifier.Subscribe(ctx, "room:room-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	notifier.Publish(ctx, "room:room-1")

	select {
	case <-signals:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for signal")
	}
}

func TestNotifierScopesTopics(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	notifier := NewNotifier(newClient(mr), nil)
	ctx := context.Background()

	signals, cancel, err := notifier.Subscribe(ctx, "room:room-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	notifier.Publish(ctx, "room:room-2")

	select {
	case <-signals:
		t.Fatalf("received signal for unrelated topic")
	case <-time.After(100 * time.Millisecond):
	}
}
