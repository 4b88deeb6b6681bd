package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"jotlet/broadcast"
	"jotlet/config"
	"jotlet/presence"
	"jotlet/utils"
)

// BoardFinder reports whether a board with the given slug exists.
type BoardFinder interface {
	BoardExists(ctx context.Context, slug string) (bool, error)
}

// Server upgrades /ws/boards/{slug}/ requests into board sessions.
type Server struct {
	boards   BoardFinder
	presence presence.Store
	bus      broadcast.Bus
	logger   *slog.Logger
	upgrader websocket.Upgrader

	writeWait time.Duration
	pongWait  time.Duration

	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	closing  bool
	sessions sync.WaitGroup
}

func NewServer(boards BoardFinder, store presence.Store, bus broadcast.Bus, logger *slog.Logger) *Server {
	return &Server{
		boards:   boards,
		presence: store,
		bus:      bus,
		logger:   logger.With("component", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		writeWait: config.SocketWriteWait,
		pongWait:  config.SocketPongWait,
		conns:     make(map[*websocket.Conn]struct{}),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if !utils.ValidSlug(slug) {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	closing := s.closing
	s.mu.Unlock()
	if closing {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	ok, err := s.boards.BoardExists(r.Context(), slug)
	if err != nil {
		s.logger.Error("Board lookup failed", "slug", slug, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	sess := NewSession(slug, s.presence, s.bus, s.logger)
	sess.keepalive = ticker(sess.Done(), s.pongWait*9/10)
	if err := sess.Connect(r.Context()); err != nil {
		s.logger.Error("Channel connect failed", "slug", slug, "error", err)
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		sess.Disconnect(r.Context())
		return
	}
	if !s.track(conn) {
		sess.Disconnect(r.Context())
		closeGoingAway(conn)
		return
	}
	defer s.untrack(conn)
	defer conn.Close()
	defer sess.Disconnect(r.Context())

	ws := &wsConn{conn: conn, writeWait: s.writeWait}
	if err := sess.Accept(r.Context(), ws); err != nil {
		s.logger.Error("Channel accept failed", "slug", slug, "error", err)
		return
	}

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})
	for {
		// Clients have nothing to say; reading only detects the close.
		if _, _, err := conn.ReadMessage(); err != nil {
			if !isPeerClosed(err) {
				s.logger.Debug("Socket read ended", "slug", slug, "error", err)
			}
			break
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))
}

// track registers a live socket. It fails once Shutdown has begun.
func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.sessions.Add(1)
	return true
}

// untrack runs after the session's Disconnect has finished.
func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.sessions.Done()
}

// Shutdown closes every live socket and waits until their sessions have
// released presence and left their groups. http.Server.Shutdown does not
// see hijacked connections, so call this alongside it and before closing
// the presence store or bus. New sockets are refused from here on.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.logger.Info("Closing live sockets", "count", len(conns))
	for _, c := range conns {
		closeGoingAway(c)
	}

	drained := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for sockets to drain: %w", ctx.Err())
	}
}

// closeGoingAway tells the client the server is leaving, then drops the
// connection so the read loop returns.
func closeGoingAway(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(time.Second))
	_ = conn.Close()
}

type wsConn struct {
	conn      *websocket.Conn
	writeWait time.Duration
}

func (c *wsConn) WriteEvent(evt broadcast.Event) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.conn.WriteJSON(evt)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (c *wsConn) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

// ticker emits on the returned channel every d until stop is closed.
func ticker(stop <-chan struct{}, d time.Duration) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		t := time.NewTicker(d)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				select {
				case out <- struct{}{}:
				case <-stop:
					return
				}
			}
		}
	}()
	return out
}

// isPeerClosed reports errors caused by the other side going away.
func isPeerClosed(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, broadcast.ErrPeerClosed) ||
		errors.Is(err, websocket.ErrCloseSent) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		websocket.IsCloseError(err,
			websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseNoStatusReceived,
			websocket.CloseAbnormalClosure)
}
