// Package broadcast fans board events out to every live socket subscribed
// to a board's group.
package broadcast

import (
	"context"
	"errors"

	"jotlet/config"
)

// ErrPeerClosed is returned by a Subscriber whose connection is gone.
// Publishers discard it.
var ErrPeerClosed = errors.New("broadcast: peer closed")

// Subscriber receives events for the groups it joined. Deliver must not
// block on network I/O.
type Subscriber interface {
	Deliver(evt Event) error
}

// Bus is a group publish/subscribe transport. Publish reaches the
// subscribers registered at the moment of the call; there is no replay.
type Bus interface {
	Subscribe(ctx context.Context, group string, sub Subscriber) error
	Unsubscribe(ctx context.Context, group string, sub Subscriber) error
	Publish(ctx context.Context, group string, evt Event) error
}

// GroupName is the broadcast group of the board with the given slug.
func GroupName(slug string) string {
	return config.GroupPrefix + slug
}
