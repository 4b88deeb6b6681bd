// Package presence counts the live channel connections held open per board.
package presence

import "context"

// Store is a shared connection counter with a rolling expiry.
//
// Join and Leave are atomic with respect to concurrent callers on the same
// key. A missing key counts as zero.
type Store interface {
	// Join creates the counter at zero if absent, increments it and
	// refreshes its TTL. It returns the new count.
	Join(ctx context.Context, key string) (int64, error)
	// Leave decrements the counter. When the result reaches zero the key
	// is removed and 0 is returned.
	Leave(ctx context.Context, key string) (int64, error)
	// Count reads the counter without modifying it.
	Count(ctx context.Context, key string) (int64, error)
}
