package database

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jotlet/models"
	"jotlet/utils"
)

// setupTestDB creates a fresh database in a temp dir using the pure Go driver.
func setupTestDB(t *testing.T) *DatabaseService {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	ds, err := InitDB("sqlite", filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() { ds.DB.Close() })
	return ds
}

// slugSequence hands out the given slugs in order, repeating the last.
func slugSequence(slugs ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		s := slugs[min(i, len(slugs)-1)]
		i++
		return s, nil
	}
}

func countRows(t *testing.T, ds *DatabaseService, query string, args ...any) int {
	t.Helper()
	var n int
	if err := ds.DB.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count query %q failed: %v", query, err)
	}
	return n
}

func seedTopic(t *testing.T, ds *DatabaseService) (*models.Board, *models.Topic) {
	t.Helper()
	ctx := context.Background()
	b, err := ds.CreateBoard(ctx, nil, "Retro", "")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	topic, err := ds.CreateTopic(ctx, b.ID, "What went well")
	if err != nil {
		t.Fatalf("CreateTopic failed: %v", err)
	}
	return b, topic
}

func seedPost(t *testing.T, ds *DatabaseService, topicID int64, approved bool) *models.Post {
	t.Helper()
	p := &models.Post{TopicID: topicID, SessionKey: "sess", IdentityHash: "abc", Content: "hello", Approved: approved, AllowReplies: true}
	if err := ds.CreatePost(context.Background(), p); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	return p
}

func TestMigrations(t *testing.T) {
	ds := setupTestDB(t)

	if n := countRows(t, ds, "SELECT COUNT(*) FROM schema_migrations WHERE version = 1"); n != 1 {
		t.Errorf("Expected migration version 1 to be recorded, got %d rows", n)
	}
	if n := countRows(t, ds, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_posts_identity'"); n != 1 {
		t.Error("Expected idx_posts_identity to exist after migrations")
	}
}

func TestCreateBoard(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		ds := setupTestDB(t)
		b, err := ds.CreateBoard(ctx, nil, "Sprint 12", "retro")
		if err != nil {
			t.Fatalf("CreateBoard failed: %v", err)
		}
		if !utils.ValidSlug(b.Slug) {
			t.Errorf("Generated slug %q is not valid", b.Slug)
		}
		want := models.DefaultPreferences()
		p := b.Preferences
		if p.BoardType != want.BoardType || p.ReactionType != want.ReactionType || p.BackgroundType != want.BackgroundType ||
			p.AllowPostEditing != want.AllowPostEditing || p.BackgroundColor != want.BackgroundColor || len(p.Moderators) != 0 {
			t.Errorf("Unexpected default preferences: %+v", p)
		}
	})

	t.Run("retries on slug collision", func(t *testing.T) {
		ds := setupTestDB(t)
		ds.NewSlug = slugSequence("aaaaaaaa", "aaaaaaaa", "bbbbbbbb")
		first, err := ds.CreateBoard(ctx, nil, "One", "")
		if err != nil {
			t.Fatalf("first CreateBoard failed: %v", err)
		}
		second, err := ds.CreateBoard(ctx, nil, "Two", "")
		if err != nil {
			t.Fatalf("second CreateBoard failed: %v", err)
		}
		if first.Slug != "aaaaaaaa" || second.Slug != "bbbbbbbb" {
			t.Errorf("Expected slugs aaaaaaaa and bbbbbbbb, got %s and %s", first.Slug, second.Slug)
		}
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		ds := setupTestDB(t)
		ds.NewSlug = slugSequence("cccccccc")
		if _, err := ds.CreateBoard(ctx, nil, "One", ""); err != nil {
			t.Fatalf("first CreateBoard failed: %v", err)
		}
		_, err := ds.CreateBoard(ctx, nil, "Two", "")
		if !errors.Is(err, ErrSlugExhausted) {
			t.Fatalf("Expected ErrSlugExhausted, got %v", err)
		}
		if n := countRows(t, ds, "SELECT COUNT(*) FROM boards"); n != 1 {
			t.Errorf("Expected 1 board, got %d", n)
		}
		if n := countRows(t, ds, "SELECT COUNT(*) FROM board_preferences"); n != 1 {
			t.Errorf("Expected 1 preferences row, got %d", n)
		}
	})
}

func TestGetBoardNotFound(t *testing.T) {
	ds := setupTestDB(t)
	if _, err := ds.GetBoard(context.Background(), "zzzzzzzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	exists, err := ds.BoardExists(context.Background(), "zzzzzzzz")
	if err != nil || exists {
		t.Errorf("Expected BoardExists to be false with no error, got %v, %v", exists, err)
	}
}

func TestSavePreferencesBackground(t *testing.T) {
	ctx := context.Background()
	ds := setupTestDB(t)
	b, err := ds.CreateBoard(ctx, nil, "Bg", "")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	bg := &models.Image{Type: models.ImageTypeBackground, Title: "Sky", URL: "/uploads/sky.png", ContentType: "image/png"}
	if err := ds.CreateImage(ctx, bg); err != nil {
		t.Fatalf("CreateImage failed: %v", err)
	}
	missing := "does-not-exist"

	testCases := []struct {
		name     string
		bgType   models.BackgroundType
		imageID  *string
		wantType models.BackgroundType
		wantID   bool
	}{
		{"colour drops image reference", models.BackgroundColor, &bg.ID, models.BackgroundColor, false},
		{"image without reference falls back", models.BackgroundImage, nil, models.BackgroundColor, false},
		{"missing image falls back", models.BackgroundImage, &missing, models.BackgroundColor, false},
		{"existing image kept", models.BackgroundImage, &bg.ID, models.BackgroundImage, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			prefs := models.DefaultPreferences()
			prefs.BackgroundType = tc.bgType
			prefs.BackgroundImageID = tc.imageID
			if _, err := ds.SavePreferences(ctx, b.Slug, prefs); err != nil {
				t.Fatalf("SavePreferences failed: %v", err)
			}
			got, err := ds.GetBoard(ctx, b.Slug)
			if err != nil {
				t.Fatalf("GetBoard failed: %v", err)
			}
			if got.Preferences.BackgroundType != tc.wantType {
				t.Errorf("Expected background type %q, got %q", tc.wantType, got.Preferences.BackgroundType)
			}
			if (got.Preferences.BackgroundImageID != nil) != tc.wantID {
				t.Errorf("Expected image reference present=%v, got %v", tc.wantID, got.Preferences.BackgroundImageID)
			}
		})
	}

	t.Run("deleting the image reverts to colour", func(t *testing.T) {
		_, slugs, err := ds.DeleteImage(ctx, bg.ID)
		if err != nil {
			t.Fatalf("DeleteImage failed: %v", err)
		}
		if len(slugs) != 1 || slugs[0] != b.Slug {
			t.Errorf("Expected the affected board %q to be reported, got %v", b.Slug, slugs)
		}
		got, err := ds.GetBoard(ctx, b.Slug)
		if err != nil {
			t.Fatalf("GetBoard failed: %v", err)
		}
		if got.Preferences.BackgroundType != models.BackgroundColor || got.Preferences.BackgroundImageID != nil {
			t.Errorf("Expected colour background after image deletion, got %+v", got.Preferences)
		}
	})
}

func TestSavePreferencesApprovesPending(t *testing.T) {
	ctx := context.Background()
	ds := setupTestDB(t)
	b, topic := seedTopic(t, ds)
	seedPost(t, ds, topic.ID, false)
	seedPost(t, ds, topic.ID, false)
	seedPost(t, ds, topic.ID, true)

	prefs := b.Preferences
	prefs.RequirePostApproval = true
	approved, err := ds.SavePreferences(ctx, b.Slug, prefs)
	if err != nil || approved != 0 {
		t.Fatalf("Expected no approvals while approval is required, got %d, %v", approved, err)
	}

	prefs.RequirePostApproval = false
	approved, err = ds.SavePreferences(ctx, b.Slug, prefs)
	if err != nil {
		t.Fatalf("SavePreferences failed: %v", err)
	}
	if approved != 2 {
		t.Errorf("Expected 2 posts approved, got %d", approved)
	}
	if n := countRows(t, ds, "SELECT COUNT(*) FROM posts WHERE approved = 0"); n != 0 {
		t.Errorf("Expected no pending posts, got %d", n)
	}
}

func TestPostingWindowRoundTrip(t *testing.T) {
	ctx := context.Background()
	ds := setupTestDB(t)
	b, err := ds.CreateBoard(ctx, nil, "Window", "")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	from := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	prefs := b.Preferences
	prefs.PostingAllowedFrom = &from
	if _, err := ds.SavePreferences(ctx, b.Slug, prefs); err != nil {
		t.Fatalf("SavePreferences failed: %v", err)
	}
	got, err := ds.GetBoard(ctx, b.Slug)
	if err != nil {
		t.Fatalf("GetBoard failed: %v", err)
	}
	if got.Preferences.PostingAllowedFrom == nil || !got.Preferences.PostingAllowedFrom.Equal(from) {
		t.Errorf("Expected posting_allowed_from %v, got %v", from, got.Preferences.PostingAllowedFrom)
	}
	if got.Preferences.PostingAllowedUntil != nil {
		t.Errorf("Expected posting_allowed_until to stay nil, got %v", got.Preferences.PostingAllowedUntil)
	}
}

// TestBoardReadsAcrossInstances opens the same file twice, as two server
// processes sharing one database would.
func TestBoardReadsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "shared.db")

	open := func() *DatabaseService {
		ds, err := InitDB("sqlite", path, logger)
		if err != nil {
			t.Fatalf("InitDB failed: %v", err)
		}
		t.Cleanup(func() { ds.DB.Close() })
		return ds
	}
	a, b := open(), open()

	board, err := a.CreateBoard(ctx, nil, "Shared", "")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	mod, err := a.CreateUser(ctx, "mod", "password", false)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := a.SetModerators(ctx, board.Slug, []int64{mod.ID}); err != nil {
		t.Fatalf("SetModerators failed: %v", err)
	}

	before, err := b.GetBoard(ctx, board.Slug)
	if err != nil {
		t.Fatalf("GetBoard failed: %v", err)
	}
	if before.Locked || !before.Preferences.HasModerator(mod.ID) {
		t.Fatalf("Unexpected initial board: locked=%v moderators=%v", before.Locked, before.Preferences.Moderators)
	}

	if _, err := a.ToggleBoardLock(ctx, board.Slug); err != nil {
		t.Fatalf("ToggleBoardLock failed: %v", err)
	}
	if err := a.SetModerators(ctx, board.Slug, nil); err != nil {
		t.Fatalf("SetModerators failed: %v", err)
	}
	prefs := before.Preferences
	prefs.RequirePostApproval = true
	if _, err := a.SavePreferences(ctx, board.Slug, prefs); err != nil {
		t.Fatalf("SavePreferences failed: %v", err)
	}

	after, err := b.GetBoard(ctx, board.Slug)
	if err != nil {
		t.Fatalf("GetBoard failed: %v", err)
	}
	if !after.Locked {
		t.Error("Expected the other instance to see the lock")
	}
	if after.Preferences.HasModerator(mod.ID) {
		t.Error("Expected the other instance to see the moderator removed")
	}
	if !after.Preferences.RequirePostApproval {
		t.Error("Expected the other instance to see the new preferences")
	}
}

func TestModerators(t *testing.T) {
	ctx := context.Background()
	ds := setupTestDB(t)
	b, err := ds.CreateBoard(ctx, nil, "Mods", "")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	u, err := ds.CreateUser(ctx, "ana", "pw", false)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := ds.SetModerators(ctx, b.Slug, []int64{u.ID}); err != nil {
		t.Fatalf("SetModerators failed: %v", err)
	}
	got, _ := ds.GetBoard(ctx, b.Slug)
	if !got.Preferences.HasModerator(u.ID) {
		t.Errorf("Expected user %d to moderate board, got %v", u.ID, got.Preferences.Moderators)
	}
	if err := ds.SetModerators(ctx, b.Slug, []int64{9999}); err == nil {
		t.Error("Expected an error for an unknown moderator")
	}
	got, _ = ds.GetBoard(ctx, b.Slug)
	if !got.Preferences.HasModerator(u.ID) {
		t.Error("Expected the failed update to leave moderators unchanged")
	}
}

func TestToggleLocks(t *testing.T) {
	ctx := context.Background()
	ds := setupTestDB(t)
	b, topic := seedTopic(t, ds)

	locked, err := ds.ToggleBoardLock(ctx, b.Slug)
	if err != nil || !locked {
		t.Fatalf("Expected board to lock, got %v, %v", locked, err)
	}
	got, _ := ds.GetBoard(ctx, b.Slug)
	if !got.Locked {
		t.Error("Expected the board to reflect the lock")
	}
	locked, err = ds.ToggleTopicLock(ctx, topic.ID)
	if err != nil || !locked {
		t.Fatalf("Expected topic to lock, got %v, %v", locked, err)
	}
	locked, _ = ds.ToggleTopicLock(ctx, topic.ID)
	if locked {
		t.Error("Expected second toggle to unlock the topic")
	}
	if _, err := ds.ToggleTopicLock(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a missing topic, got %v", err)
	}
}

func TestPostLifecycle(t *testing.T) {
	ctx := context.Background()
	ds := setupTestDB(t)
	_, topic := seedTopic(t, ds)
	parent := seedPost(t, ds, topic.ID, true)

	reply := &models.Post{TopicID: topic.ID, ParentID: &parent.ID, SessionKey: "other", IdentityHash: "def", Content: "+1", Approved: true}
	if err := ds.CreatePost(ctx, reply); err != nil {
		t.Fatalf("CreatePost reply failed: %v", err)
	}

	updated, err := ds.UpdatePost(ctx, parent.ID, "edited", true)
	if err != nil {
		t.Fatalf("UpdatePost failed: %v", err)
	}
	if updated.Content != "edited" || updated.Approved {
		t.Errorf("Expected edited unapproved post, got %+v", updated)
	}
	approved, err := ds.TogglePostApproval(ctx, parent.ID)
	if err != nil || !approved {
		t.Fatalf("Expected approval toggle to approve, got %v, %v", approved, err)
	}

	if err := ds.DeletePost(ctx, parent.ID); err != nil {
		t.Fatalf("DeletePost failed: %v", err)
	}
	if _, err := ds.GetPost(ctx, reply.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected reply to be removed with its parent, got %v", err)
	}
}

func TestBulkPostOperationsScope(t *testing.T) {
	ctx := context.Background()
	ds := setupTestDB(t)
	b, first := seedTopic(t, ds)
	second, err := ds.CreateTopic(ctx, b.ID, "Second")
	if err != nil {
		t.Fatalf("CreateTopic failed: %v", err)
	}
	_, otherTopic := seedTopic(t, ds)
	seedPost(t, ds, first.ID, false)
	seedPost(t, ds, second.ID, false)
	seedPost(t, ds, otherTopic.ID, false)

	n, err := ds.ApprovePosts(ctx, b.ID, first.ID)
	if err != nil || n != 1 {
		t.Fatalf("Expected 1 post approved in topic scope, got %d, %v", n, err)
	}
	n, err = ds.ApprovePosts(ctx, b.ID, 0)
	if err != nil || n != 1 {
		t.Fatalf("Expected 1 more post approved in board scope, got %d, %v", n, err)
	}
	if pending := countRows(t, ds, "SELECT COUNT(*) FROM posts WHERE topic_id = ? AND approved = 0", otherTopic.ID); pending != 1 {
		t.Errorf("Expected the other board's post to stay pending, got %d pending", pending)
	}
	// A topic from another board is out of scope.
	if n, _ := ds.ApprovePosts(ctx, b.ID, otherTopic.ID); n != 0 {
		t.Errorf("Expected cross-board approve to touch nothing, got %d", n)
	}

	n, err = ds.DeletePosts(ctx, b.ID, 0)
	if err != nil || n != 2 {
		t.Fatalf("Expected 2 posts deleted, got %d, %v", n, err)
	}
	if remaining := countRows(t, ds, "SELECT COUNT(*) FROM posts"); remaining != 1 {
		t.Errorf("Expected 1 post left, got %d", remaining)
	}
}

func TestToggleReaction(t *testing.T) {
	ctx := context.Background()
	ds := setupTestDB(t)
	_, topic := seedTopic(t, ds)
	post := seedPost(t, ds, topic.ID, true)
	u, err := ds.CreateUser(ctx, "bo", "pw", false)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	vote := func(userID *int64, session string, score int) models.Reaction {
		return models.Reaction{PostID: post.ID, UserID: userID, SessionKey: session, Type: models.ReactionVote, Score: score}
	}
	steps := []struct {
		name string
		r    models.Reaction
		want ReactionOutcome
	}{
		{"user upvotes", vote(&u.ID, "", 1), ReactionAdded},
		{"user switches to downvote", vote(&u.ID, "", -1), ReactionChanged},
		{"anonymous upvotes", vote(nil, "anon", 1), ReactionAdded},
		{"user repeats downvote", vote(&u.ID, "", -1), ReactionRemoved},
		{"user upvotes again", vote(&u.ID, "", 1), ReactionAdded},
	}
	for _, s := range steps {
		got, err := ds.ToggleReaction(ctx, s.r)
		if err != nil {
			t.Fatalf("%s: ToggleReaction failed: %v", s.name, err)
		}
		if got != s.want {
			t.Errorf("%s: expected %s, got %s", s.name, s.want, got)
		}
	}

	reactions, err := ds.ListReactions(ctx, post.ID)
	if err != nil {
		t.Fatalf("ListReactions failed: %v", err)
	}
	if len(reactions) != 2 {
		t.Fatalf("Expected 2 reactions, got %d", len(reactions))
	}
	byPost, err := ds.ListTopicReactions(ctx, topic.ID)
	if err != nil || len(byPost[post.ID]) != 2 {
		t.Errorf("Expected 2 reactions keyed by post, got %v, %v", byPost, err)
	}

	if n, err := ds.DeleteReactions(ctx, post.ID); err != nil || n != 2 {
		t.Errorf("Expected 2 reactions cleared, got %d, %v", n, err)
	}
}

func TestDeleteBoardCascades(t *testing.T) {
	ctx := context.Background()
	ds := setupTestDB(t)
	b, topic := seedTopic(t, ds)
	post := seedPost(t, ds, topic.ID, true)
	if _, err := ds.ToggleReaction(ctx, models.Reaction{PostID: post.ID, SessionKey: "s", Type: models.ReactionLike, Score: 1}); err != nil {
		t.Fatalf("ToggleReaction failed: %v", err)
	}
	img := &models.Image{Type: models.ImageTypePost, BoardID: &b.ID, URL: "/uploads/a.png", ContentType: "image/png"}
	if err := ds.CreateImage(ctx, img); err != nil {
		t.Fatalf("CreateImage failed: %v", err)
	}
	if n, _ := ds.CountPostImages(ctx, b.ID); n != 1 {
		t.Errorf("Expected 1 post image, got %d", n)
	}

	urls, err := ds.DeleteBoard(ctx, b.Slug)
	if err != nil {
		t.Fatalf("DeleteBoard failed: %v", err)
	}
	if len(urls) != 1 || urls[0] != img.URL {
		t.Errorf("Expected image URL %q to be returned, got %v", img.URL, urls)
	}
	for _, table := range []string{"topics", "posts", "reactions", "images", "board_preferences"} {
		if n := countRows(t, ds, "SELECT COUNT(*) FROM "+table); n != 0 {
			t.Errorf("Expected %s to be empty after board deletion, got %d", table, n)
		}
	}
	if _, err := ds.DeleteBoard(ctx, b.Slug); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestUsersAndSessions(t *testing.T) {
	ctx := context.Background()
	ds := setupTestDB(t)
	u, err := ds.CreateUser(ctx, "cy", "secret", false, models.PermLockTopic)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if _, err := ds.Authenticate(ctx, "cy", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for a bad password, got %v", err)
	}
	if _, err := ds.Authenticate(ctx, "nobody", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for an unknown user, got %v", err)
	}
	got, err := ds.Authenticate(ctx, "cy", "secret")
	if err != nil || got.ID != u.ID {
		t.Fatalf("Expected to authenticate as %d, got %v, %v", u.ID, got, err)
	}

	v, err := ds.ViewerForSession(ctx, "k1")
	if err != nil || v.IsAuthenticated() {
		t.Fatalf("Expected anonymous viewer for unbound session, got %+v, %v", v, err)
	}
	if err := ds.BindSession(ctx, "k1", u.ID); err != nil {
		t.Fatalf("BindSession failed: %v", err)
	}
	v, err = ds.ViewerForSession(ctx, "k1")
	if err != nil || v.UserID != u.ID || !v.Has(models.PermLockTopic) || v.Has(models.PermDeletePost) {
		t.Errorf("Unexpected viewer %+v, %v", v, err)
	}
	if err := ds.UnbindSession(ctx, "k1"); err != nil {
		t.Fatalf("UnbindSession failed: %v", err)
	}
	if v, _ := ds.ViewerForSession(ctx, "k1"); v.IsAuthenticated() {
		t.Error("Expected session to be anonymous after unbinding")
	}
}

func TestDeleteUserOrphansBoards(t *testing.T) {
	ctx := context.Background()
	ds := setupTestDB(t)
	u, _ := ds.CreateUser(ctx, "dee", "pw", false)
	b, err := ds.CreateBoard(ctx, &u.ID, "Owned", "")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	if b.OwnerID == nil || *b.OwnerID != u.ID {
		t.Fatalf("Expected owner %d, got %v", u.ID, b.OwnerID)
	}
	if err := ds.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	got, err := ds.GetBoard(ctx, b.Slug)
	if err != nil {
		t.Fatalf("GetBoard failed: %v", err)
	}
	if got.OwnerID != nil {
		t.Errorf("Expected board to be ownerless, got owner %d", *got.OwnerID)
	}
}

func TestBackupDatabase(t *testing.T) {
	ctx := context.Background()
	ds := setupTestDB(t)
	if _, err := ds.CreateBoard(ctx, nil, "Keep me", ""); err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}

	utils.BackupDir = t.TempDir()
	t.Cleanup(func() { utils.BackupDir = "" })

	compressed, err := ds.BackupDatabase(ctx)
	if err != nil {
		t.Fatalf("BackupDatabase failed: %v", err)
	}
	if filepath.Ext(compressed) != ".zst" {
		t.Errorf("Expected a .zst backup, got %s", compressed)
	}

	restored := filepath.Join(t.TempDir(), "restored.db")
	if err := utils.DecompressFile(compressed, restored); err != nil {
		t.Fatalf("DecompressFile failed: %v", err)
	}
	if info, err := os.Stat(restored); err != nil || info.Size() == 0 {
		t.Fatalf("Expected a non-empty restored database, got %v", err)
	}

	destDB, err := sql.Open("sqlite", restored)
	if err != nil {
		t.Fatalf("Could not open restored backup: %v", err)
	}
	defer destDB.Close()
	var title string
	if err := destDB.QueryRow("SELECT title FROM boards").Scan(&title); err != nil {
		t.Fatalf("Could not read from restored backup: %v", err)
	}
	if title != "Keep me" {
		t.Errorf("Expected restored title %q, got %q", "Keep me", title)
	}
}
