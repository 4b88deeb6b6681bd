// Package channel implements the live board socket: presence accounting on
// connect and disconnect, and relay of board events to the client.
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"jotlet/broadcast"
	"jotlet/config"
	"jotlet/presence"
)

// State is a session's position in its lifecycle. Sessions only move
// forward: New, Connecting, Joined, Closed.
type State int32

const (
	StateNew State = iota
	StateConnecting
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

var (
	ErrInvalidState = errors.New("channel: invalid session state")
	ErrOutboxFull   = errors.New("channel: outbox full")
)

// Conn is the client transport. WriteEvent is only ever called from the
// session's writer goroutine. A Conn that is also an io.Closer is closed
// when a write fails.
type Conn interface {
	WriteEvent(evt broadcast.Event) error
}

// Pinger is implemented by transports that need keepalives.
type Pinger interface {
	Ping() error
}

// Session is one client's connection to one board's channel.
type Session struct {
	slug     string
	group    string
	presence presence.Store
	bus      broadcast.Bus
	logger   *slog.Logger

	mu      sync.RWMutex
	state   State
	counted bool
	count   int64
	// writer has exited after a failed write; nothing more reaches the peer
	broken bool

	outbox     chan broadcast.Event
	done       chan struct{}
	writerDone chan struct{}
	keepalive  <-chan struct{}
}

func NewSession(slug string, store presence.Store, bus broadcast.Bus, logger *slog.Logger) *Session {
	group := broadcast.GroupName(slug)
	return &Session{
		slug:       slug,
		group:      group,
		presence:   store,
		bus:        bus,
		logger:     logger.With("component", "channel", "group", group),
		outbox:     make(chan broadcast.Event, config.SocketOutboxSize),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Connect registers presence and subscribes to the board group. The caller
// completes the transport handshake only after Connect returns nil, so no
// broadcast can fall between the two. A presence failure is logged and
// leaves the count unknown; a subscription failure aborts and cleans up.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateNew {
		s.mu.Unlock()
		return fmt.Errorf("connect from %s: %w", s.state, ErrInvalidState)
	}
	s.state = StateConnecting
	s.mu.Unlock()

	n, err := s.presence.Join(ctx, s.group)
	if err != nil {
		s.logger.Error("Presence join failed, count unknown", "error", err)
	} else {
		s.mu.Lock()
		s.counted, s.count = true, n
		s.mu.Unlock()
	}

	if err := s.bus.Subscribe(ctx, s.group, s); err != nil {
		s.Disconnect(ctx)
		return fmt.Errorf("subscribe to %s: %w", s.group, err)
	}
	return nil
}

// Accept starts relaying to conn and announces the new session count to
// the whole group, this session included.
func (s *Session) Accept(ctx context.Context, conn Conn) error {
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return fmt.Errorf("accept from %s: %w", s.state, ErrInvalidState)
	}
	s.state = StateJoined
	counted, count := s.counted, s.count
	s.mu.Unlock()

	go s.writeLoop(conn)

	if !counted {
		return nil
	}
	if err := s.bus.Publish(ctx, s.group, broadcast.SessionConnected(count)); err != nil {
		s.logger.Error("Failed to announce session", "sessions", count, "error", err)
	}
	return nil
}

// Deliver queues evt for the client. It never blocks.
func (s *Session) Deliver(evt broadcast.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateClosed || s.broken {
		return broadcast.ErrPeerClosed
	}
	select {
	case s.outbox <- evt:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Disconnect releases presence, tells the remaining sessions and leaves the
// group. It is idempotent and ignores cancellation of ctx: cleanup always
// runs to completion. Unsubscribing happens even when earlier steps fail.
func (s *Session) Disconnect(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.state = StateClosed
	counted := s.counted
	close(s.done)
	s.mu.Unlock()

	if prev == StateNew {
		return
	}
	defer func() {
		if err := s.bus.Unsubscribe(ctx, s.group, s); err != nil {
			s.logger.Error("Failed to leave group", "error", err)
		}
	}()
	if prev == StateJoined {
		<-s.writerDone
	}
	if !counted {
		return
	}

	n, err := s.presence.Leave(ctx, s.group)
	if err != nil {
		s.logger.Error("Presence leave failed", "error", err)
		return
	}
	if n == 0 {
		return
	}
	if err := s.bus.Publish(ctx, s.group, broadcast.SessionDisconnected(n)); err != nil {
		s.logger.Error("Failed to announce disconnect", "sessions", n, "error", err)
	}
}

// Done is closed once Disconnect has started.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) writeLoop(conn Conn) {
	defer close(s.writerDone)
	pinger, _ := conn.(Pinger)
	tick := s.keepalive
	for {
		select {
		case <-s.done:
			return
		case <-tick:
			if pinger == nil {
				continue
			}
			if err := pinger.Ping(); err != nil {
				s.writeFailed(conn, err)
				return
			}
		case evt := <-s.outbox:
			if err := conn.WriteEvent(evt); err != nil {
				s.writeFailed(conn, err)
				return
			}
		}
	}
}

// writeFailed stops further deliveries and closes the transport so the
// read side notices and disconnects the session.
func (s *Session) writeFailed(conn Conn, err error) {
	s.mu.Lock()
	s.broken = true
	s.mu.Unlock()

	if !isPeerClosed(err) {
		s.logger.Error("Socket write failed", "error", err)
	}
	if c, ok := conn.(io.Closer); ok {
		if err := c.Close(); err != nil && !isPeerClosed(err) {
			s.logger.Debug("Socket close after write failure", "error", err)
		}
	}
}
