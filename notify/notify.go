// Package notify turns committed board mutations into channel events.
//
// Handlers call exactly one method per successful write, after the write
// is durable. Publishing never fails the caller: bus errors are logged and
// swallowed, so a missed live update is possible but a successful write is
// never reported as failed.
package notify

import (
	"context"
	"log/slog"

	"jotlet/broadcast"
)

type Notifier struct {
	bus    broadcast.Bus
	logger *slog.Logger
}

func New(bus broadcast.Bus, logger *slog.Logger) *Notifier {
	return &Notifier{bus: bus, logger: logger.With("component", "notify")}
}

func (n *Notifier) publish(ctx context.Context, slug string, evt broadcast.Event) {
	if n == nil || n.bus == nil {
		return
	}
	// The response may already be on its way; the publish still goes out.
	ctx = context.WithoutCancel(ctx)
	if err := n.bus.Publish(ctx, broadcast.GroupName(slug), evt); err != nil {
		n.logger.Warn("Broadcast failed", "slug", slug, "type", evt.Kind.String(), "error", err)
	}
}

// Posts

func (n *Notifier) PostCreated(ctx context.Context, slug string, topicID, postID int64) {
	n.publish(ctx, slug, broadcast.PostCreated(topicID, postID))
}

func (n *Notifier) PostEdited(ctx context.Context, slug string, topicID, postID int64) {
	n.publish(ctx, slug, broadcast.PostUpdated(topicID, postID))
}

// PostApprovalToggled changes visibility, which clients treat as an update.
func (n *Notifier) PostApprovalToggled(ctx context.Context, slug string, topicID, postID int64) {
	n.publish(ctx, slug, broadcast.PostUpdated(topicID, postID))
}

func (n *Notifier) PostDeleted(ctx context.Context, slug string, topicID, postID int64) {
	n.publish(ctx, slug, broadcast.PostDeleted(topicID, postID))
}

// Topics

func (n *Notifier) TopicCreated(ctx context.Context, slug string, topicID int64) {
	n.publish(ctx, slug, broadcast.TopicCreated(topicID))
}

func (n *Notifier) TopicEdited(ctx context.Context, slug string, topicID int64) {
	n.publish(ctx, slug, broadcast.TopicUpdated(topicID))
}

func (n *Notifier) TopicLockToggled(ctx context.Context, slug string, topicID int64) {
	n.publish(ctx, slug, broadcast.TopicUpdated(topicID))
}

func (n *Notifier) TopicDeleted(ctx context.Context, slug string, topicID int64) {
	n.publish(ctx, slug, broadcast.TopicDeleted(topicID))
}

// Reactions

// ReactionChanged covers add, change, remove and a moderator clearing all
// reactions on a post.
func (n *Notifier) ReactionChanged(ctx context.Context, slug string, postID int64) {
	n.publish(ctx, slug, broadcast.ReactionUpdated(postID))
}

// Boards

func (n *Notifier) PreferencesSaved(ctx context.Context, slug string) {
	n.publish(ctx, slug, broadcast.BoardPreferencesChanged())
}

func (n *Notifier) BoardEdited(ctx context.Context, slug string) {
	n.publish(ctx, slug, broadcast.BoardUpdated())
}

func (n *Notifier) BoardLockToggled(ctx context.Context, slug string) {
	n.publish(ctx, slug, broadcast.BoardUpdated())
}

// Bulk moderation. A zero topicID means the whole board.

func (n *Notifier) PostsApproved(ctx context.Context, slug string, topicID int64) {
	n.publish(ctx, slug, bulkEvent(topicID))
}

func (n *Notifier) PostsDeleted(ctx context.Context, slug string, topicID int64) {
	n.publish(ctx, slug, bulkEvent(topicID))
}

func bulkEvent(topicID int64) broadcast.Event {
	if topicID == 0 {
		return broadcast.BoardUpdated()
	}
	return broadcast.TopicUpdated(topicID)
}
