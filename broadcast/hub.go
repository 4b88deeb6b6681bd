package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Hub is an in-process Bus.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{groups: make(map[string]map[Subscriber]struct{})}
}

func (h *Hub) Subscribe(_ context.Context, group string, sub Subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[Subscriber]struct{})
		h.groups[group] = members
	}
	members[sub] = struct{}{}
	return nil
}

func (h *Hub) Unsubscribe(_ context.Context, group string, sub Subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.groups[group]
	delete(members, sub)
	if len(members) == 0 {
		delete(h.groups, group)
	}
	return nil
}

// Publish delivers evt to every current member of group. Members that
// report ErrPeerClosed are skipped; other failures are collected and
// returned once every member has been tried.
func (h *Hub) Publish(_ context.Context, group string, evt Event) error {
	h.mu.RLock()
	members := make([]Subscriber, 0, len(h.groups[group]))
	for sub := range h.groups[group] {
		members = append(members, sub)
	}
	h.mu.RUnlock()

	var errs []error
	for _, sub := range members {
		err := sub.Deliver(evt)
		if err == nil || errors.Is(err, ErrPeerClosed) {
			continue
		}
		errs = append(errs, fmt.Errorf("deliver %s to %s: %w", evt.Kind, group, err))
	}
	return errors.Join(errs...)
}

// Members returns the number of subscribers in group.
func (h *Hub) Members(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
