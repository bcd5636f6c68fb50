package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	title           TEXT NOT NULL DEFAULT '',
	message         TEXT NOT NULL DEFAULT '',
	type            TEXT NOT NULL DEFAULT 'general',
	timestamp       INTEGER NOT NULL,
	is_read         INTEGER NOT NULL DEFAULT 0,
	related_post_id TEXT,
	sender_name     TEXT
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_ts
	ON notifications(user_id, timestamp DESC);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_notifications_unread
	ON notifications(user_id, is_read) WHERE is_read = 0;

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
