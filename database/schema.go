package database

const schema = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_staff BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS user_permissions (
	user_id INTEGER NOT NULL,
	codename TEXT NOT NULL,
	PRIMARY KEY (user_id, codename),
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);
-- Binds an anonymous session cookie to a signed-in user.
CREATE TABLE IF NOT EXISTS sessions (
	session_key TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS images (
	id TEXT PRIMARY KEY,
	image_type TEXT NOT NULL CHECK (image_type IN ('b', 'p')),
	board_id INTEGER,
	title TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL,
	content_type TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (board_id) REFERENCES boards(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS boards (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slug TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	owner_id INTEGER,
	locked BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE SET NULL
);
CREATE TABLE IF NOT EXISTS board_preferences (
	board_id INTEGER PRIMARY KEY,
	board_type TEXT NOT NULL DEFAULT 'd',
	reaction_type TEXT NOT NULL DEFAULT 'n',
	require_post_approval BOOLEAN NOT NULL DEFAULT 0,
	allow_post_editing BOOLEAN NOT NULL DEFAULT 1,
	require_post_reapproval_on_edit BOOLEAN NOT NULL DEFAULT 0,
	allow_guest_replies BOOLEAN NOT NULL DEFAULT 1,
	posting_allowed_from DATETIME,
	posting_allowed_until DATETIME,
	background_type TEXT NOT NULL DEFAULT 'c',
	background_image_id TEXT,
	background_color TEXT NOT NULL DEFAULT '#ffffff',
	background_opacity REAL NOT NULL DEFAULT 1.0,
	FOREIGN KEY (board_id) REFERENCES boards(id) ON DELETE CASCADE,
	FOREIGN KEY (background_image_id) REFERENCES images(id) ON DELETE SET NULL
);
CREATE TABLE IF NOT EXISTS board_moderators (
	board_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	PRIMARY KEY (board_id, user_id),
	FOREIGN KEY (board_id) REFERENCES boards(id) ON DELETE CASCADE,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS topics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	board_id INTEGER NOT NULL,
	subject TEXT NOT NULL,
	locked BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY (board_id) REFERENCES boards(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	topic_id INTEGER NOT NULL,
	parent_id INTEGER,
	user_id INTEGER,
	session_key TEXT,
	identity_hash TEXT NOT NULL,
	content TEXT NOT NULL,
	approved BOOLEAN NOT NULL DEFAULT 1,
	allow_replies BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY (topic_id) REFERENCES topics(id) ON DELETE CASCADE,
	FOREIGN KEY (parent_id) REFERENCES posts(id) ON DELETE CASCADE,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE SET NULL
);
CREATE TABLE IF NOT EXISTS reactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	post_id INTEGER NOT NULL,
	user_id INTEGER,
	session_key TEXT,
	reaction_type TEXT NOT NULL,
	reaction_score INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	CHECK ((user_id IS NULL) <> (session_key IS NULL)),
	FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

-- --- INDEXES ---
CREATE INDEX IF NOT EXISTS idx_topics_board ON topics(board_id);
CREATE INDEX IF NOT EXISTS idx_posts_topic ON posts(topic_id);
CREATE INDEX IF NOT EXISTS idx_posts_parent ON posts(parent_id);
CREATE INDEX IF NOT EXISTS idx_posts_pending ON posts(topic_id) WHERE approved = 0;
CREATE INDEX IF NOT EXISTS idx_reactions_post ON reactions(post_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_reactions_user_unique
	ON reactions(post_id, user_id, reaction_type) WHERE user_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_reactions_session_unique
	ON reactions(post_id, session_key, reaction_type) WHERE session_key IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_images_board_type ON images(board_id, image_type);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`
