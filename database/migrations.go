// jotlet/database/migrations.go
package database

// migration represents a single database schema migration.
type migration struct {
	Version uint
	Query   string
}

// allMigrations holds all schema changes in order. The base schema already
// contains everything up to the latest version; migrations bring older
// databases forward.
var allMigrations = []migration{
	{
		Version: 1,
		Query: `
-- Look up an author's posts on a board by fingerprint
CREATE INDEX IF NOT EXISTS idx_posts_identity ON posts(identity_hash);
		`,
	},
}
