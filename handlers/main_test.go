package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"jotlet/broadcast"
	"jotlet/channel"
	"jotlet/config"
	"jotlet/database"
	"jotlet/models"
	"jotlet/notify"
	"jotlet/presence"
	"jotlet/utils"
)

const testCSRF = "test-csrf-token"

// recordingBus delivers through a real Hub and remembers every publish.
type recordingBus struct {
	*broadcast.Hub
	mu  sync.Mutex
	got []broadcast.Event
}

func (b *recordingBus) Publish(ctx context.Context, group string, evt broadcast.Event) error {
	b.mu.Lock()
	b.got = append(b.got, evt)
	b.mu.Unlock()
	return b.Hub.Publish(ctx, group, evt)
}

// Events returns published events other than presence changes.
func (b *recordingBus) Events() []broadcast.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []broadcast.Event
	for _, e := range b.got {
		if e.Kind != broadcast.KindSessionConnected && e.Kind != broadcast.KindSessionDisconnected {
			out = append(out, e)
		}
	}
	return out
}

func (b *recordingBus) Last() (broadcast.Event, bool) {
	evts := b.Events()
	if len(evts) == 0 {
		return broadcast.Event{}, false
	}
	return evts[len(evts)-1], true
}

// MockApplication holds dependencies for handler tests.
type MockApplication struct {
	db          *database.DatabaseService
	rateLimiter *models.RateLimiter
	logger      *slog.Logger
	uploadDir   string
	storage     models.StorageService
	bus         *recordingBus
	notifier    *notify.Notifier
	sockets     http.Handler
	router      http.Handler
}

func (a *MockApplication) DB() *database.DatabaseService    { return a.db }
func (a *MockApplication) RateLimiter() *models.RateLimiter { return a.rateLimiter }
func (a *MockApplication) Logger() *slog.Logger             { return a.logger }
func (a *MockApplication) UploadDir() string                { return a.uploadDir }
func (a *MockApplication) Storage() models.StorageService   { return a.storage }
func (a *MockApplication) Notifier() *notify.Notifier       { return a.notifier }
func (a *MockApplication) Sockets() http.Handler            { return a.sockets }
func (a *MockApplication) IdentityKey() []byte              { return utils.DeriveKey("test-identity") }

// setupTestApp creates a full application stack over a temporary database.
func setupTestApp(t *testing.T) *MockApplication {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	dir := t.TempDir()

	dbService, err := database.InitDB("sqlite", filepath.Join(dir, "test.db"), logger)
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	uploadDir := filepath.Join(dir, "uploads")
	bus := &recordingBus{Hub: broadcast.NewHub()}

	app := &MockApplication{
		db:          dbService,
		rateLimiter: models.NewRateLimiter(time.Millisecond, 1000, time.Hour, 24*time.Hour),
		logger:      logger,
		uploadDir:   uploadDir,
		storage:     &utils.LocalStorage{UploadDir: uploadDir},
		bus:         bus,
		notifier:    notify.New(bus, logger),
		sockets:     channel.NewServer(dbService, presence.NewMemoryStore(time.Hour), bus, logger),
	}
	app.router = SetupRouter(app)

	t.Cleanup(func() { app.db.DB.Close() })
	return app
}

// newFormRequest builds a request carrying the session cookie and a valid
// CSRF pair.
func newFormRequest(method, path, session string, form url.Values) *http.Request {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("X-CSRF-Token", testCSRF)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRF})
	if session != "" {
		req.AddCookie(&http.Cookie{Name: config.SessionCookieName, Value: session})
	}
	return req
}

func (a *MockApplication) do(method, path, session string, form url.Values) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, newFormRequest(method, path, session, form))
	return rr
}

// signIn creates a user and binds session to it.
func (a *MockApplication) signIn(t *testing.T, session, username string, staff bool, perms ...string) *models.User {
	t.Helper()
	ctx := context.Background()
	u, err := a.db.CreateUser(ctx, username, "password", staff, perms...)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := a.db.BindSession(ctx, session, u.ID); err != nil {
		t.Fatalf("BindSession failed: %v", err)
	}
	return u
}

// seedBoard creates a board owned by a signed-in "owner" session with one
// topic.
func seedBoard(t *testing.T, app *MockApplication, mutate func(*models.BoardPreferences)) (*models.Board, *models.Topic) {
	t.Helper()
	ctx := context.Background()
	owner := app.signIn(t, "owner-session", "owner", false)
	b, err := app.db.CreateBoard(ctx, &owner.ID, "Retro", "")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	if mutate != nil {
		prefs := b.Preferences
		mutate(&prefs)
		if _, err := app.db.SavePreferences(ctx, b.Slug, prefs); err != nil {
			t.Fatalf("SavePreferences failed: %v", err)
		}
		if b, err = app.db.GetBoard(ctx, b.Slug); err != nil {
			t.Fatalf("GetBoard failed: %v", err)
		}
	}
	topic, err := app.db.CreateTopic(ctx, b.ID, "Ideas")
	if err != nil {
		t.Fatalf("CreateTopic failed: %v", err)
	}
	return b, topic
}
