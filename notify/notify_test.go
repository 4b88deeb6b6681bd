package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"jotlet/broadcast"
)

type published struct {
	group string
	evt   broadcast.Event
	live  bool
}

type recordingBus struct {
	broadcast.Bus
	got []published
	err error
}

func (b *recordingBus) Publish(ctx context.Context, group string, evt broadcast.Event) error {
	b.got = append(b.got, published{group, evt, ctx.Err() == nil})
	return b.err
}

func newNotifier(bus broadcast.Bus) *Notifier {
	return New(bus, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func TestMutationMapping(t *testing.T) {
	ctx := context.Background()
	const slug = "abc123"
	tests := []struct {
		name string
		call func(n *Notifier)
		want broadcast.Event
	}{
		{"post create", func(n *Notifier) { n.PostCreated(ctx, slug, 1, 2) }, broadcast.PostCreated(1, 2)},
		{"post edit", func(n *Notifier) { n.PostEdited(ctx, slug, 1, 2) }, broadcast.PostUpdated(1, 2)},
		{"post approval", func(n *Notifier) { n.PostApprovalToggled(ctx, slug, 1, 2) }, broadcast.PostUpdated(1, 2)},
		{"post delete", func(n *Notifier) { n.PostDeleted(ctx, slug, 1, 2) }, broadcast.PostDeleted(1, 2)},
		{"topic create", func(n *Notifier) { n.TopicCreated(ctx, slug, 1) }, broadcast.TopicCreated(1)},
		{"topic edit", func(n *Notifier) { n.TopicEdited(ctx, slug, 1) }, broadcast.TopicUpdated(1)},
		{"topic lock", func(n *Notifier) { n.TopicLockToggled(ctx, slug, 1) }, broadcast.TopicUpdated(1)},
		{"topic delete", func(n *Notifier) { n.TopicDeleted(ctx, slug, 1) }, broadcast.TopicDeleted(1)},
		{"reaction", func(n *Notifier) { n.ReactionChanged(ctx, slug, 2) }, broadcast.ReactionUpdated(2)},
		{"preferences", func(n *Notifier) { n.PreferencesSaved(ctx, slug) }, broadcast.BoardPreferencesChanged()},
		{"board edit", func(n *Notifier) { n.BoardEdited(ctx, slug) }, broadcast.BoardUpdated()},
		{"board lock", func(n *Notifier) { n.BoardLockToggled(ctx, slug) }, broadcast.BoardUpdated()},
		{"approve all in board", func(n *Notifier) { n.PostsApproved(ctx, slug, 0) }, broadcast.BoardUpdated()},
		{"approve all in topic", func(n *Notifier) { n.PostsApproved(ctx, slug, 5) }, broadcast.TopicUpdated(5)},
		{"delete all in board", func(n *Notifier) { n.PostsDeleted(ctx, slug, 0) }, broadcast.BoardUpdated()},
		{"delete all in topic", func(n *Notifier) { n.PostsDeleted(ctx, slug, 5) }, broadcast.TopicUpdated(5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &recordingBus{}
			tt.call(newNotifier(bus))
			if len(bus.got) != 1 {
				t.Fatalf("Expected exactly one event, got %d", len(bus.got))
			}
			if bus.got[0].group != "board-abc123" {
				t.Errorf("Unexpected group %q", bus.got[0].group)
			}
			if bus.got[0].evt != tt.want {
				t.Errorf("got %+v, want %+v", bus.got[0].evt, tt.want)
			}
		})
	}
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	bus := &recordingBus{err: errors.New("bus down")}
	n := newNotifier(bus)
	n.PostCreated(context.Background(), "abc123", 1, 2)
	if len(bus.got) != 1 {
		t.Fatal("Expected the publish to be attempted")
	}
}

func TestPublishSurvivesCancelledRequest(t *testing.T) {
	bus := &recordingBus{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	newNotifier(bus).TopicCreated(ctx, "abc123", 3)
	if len(bus.got) != 1 || !bus.got[0].live {
		t.Error("Expected the publish to run with an uncancelled context")
	}
}

func TestNilNotifier(t *testing.T) {
	var n *Notifier
	n.PostCreated(context.Background(), "abc123", 1, 2)
}
