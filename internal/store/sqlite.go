package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/nhle/campusnotify/internal/feed"
	"github.com/nhle/campusnotify/internal/model"
)

// SQLiteStore is a feed.Backend on a local SQLite database. Live
// subscriptions are served from an in-process Hub, so only writers in
// the same process are observed.
type SQLiteStore struct {
	db     *sqlx.DB
	hub    *Hub
	logger zerolog.Logger
}

var _ feed.Backend = (*SQLiteStore)(nil)

// notificationRow mirrors the notifications table.
type notificationRow struct {
	ID            string         `db:"id"`
	UserID        string         `db:"user_id"`
	Title         string         `db:"title"`
	Message       string         `db:"message"`
	Type          string         `db:"type"`
	Timestamp     int64          `db:"timestamp"`
	IsRead        int            `db:"is_read"`
	RelatedPostID sql.NullString `db:"related_post_id"`
	SenderName    sql.NullString `db:"sender_name"`
}

const selectColumns = `id, user_id, title, message, type, timestamp, is_read, related_post_id, sender_name`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and
	// serializes writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		hub:    NewHub(),
		logger: logger.With().Str("component", "sqlite_store").Logger(),
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// List returns the user's notifications, newest first. Rows that do not
// decode (an unknown type, for instance) are skipped.
func (s *SQLiteStore) List(ctx context.Context, userID string) ([]model.Notification, error) {
	var rows []notificationRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+selectColumns+" FROM notifications WHERE user_id = ? ORDER BY timestamp DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying notifications for %s: %w", userID, err)
	}

	docs := make([]map[string]any, len(rows))
	for i, r := range rows {
		docs[i] = r.document()
	}

	out := feed.DecodeAll(docs)
	if dropped := len(rows) - len(out); dropped > 0 {
		s.logger.Warn().Str("user_id", userID).Int("dropped", dropped).Msg("skipped malformed notifications")
	}
	return out, nil
}

// Subscribe registers with the hub before taking the snapshot so no
// write falls between the two. A record written in that window may be
// delivered twice; consumers dedupe by id.
func (s *SQLiteStore) Subscribe(ctx context.Context, userID string) (feed.Subscription, error) {
	live, unsubscribe := s.hub.Subscribe(userID)

	current, err := s.List(ctx, userID)
	if err != nil {
		unsubscribe()
		return nil, err
	}

	snapshot := make([]feed.Event, len(current))
	for i, n := range current {
		snapshot[i] = feed.Added(n)
	}

	return newSubscription(snapshot, live, unsubscribe), nil
}

// MarkRead sets is_read on one notification and publishes the change.
func (s *SQLiteStore) MarkRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("marking notification %s as read: %w", id, feed.ErrNotFound)
	}

	row, err := s.getRow(ctx, id)
	if err != nil {
		return err
	}
	if n, err := feed.Decode(row.document()); err == nil {
		s.publish(row.UserID, feed.Modified(n))
	}
	return nil
}

// Delete removes one notification and publishes the removal.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	row, err := s.getRow(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}

	s.publish(row.UserID, feed.Removed(id))
	return nil
}

// Create inserts a notification for userID. A new UUID is always
// assigned; a zero Timestamp becomes now.
func (s *SQLiteStore) Create(ctx context.Context, userID string, n model.Notification) (model.Notification, error) {
	n.ID = uuid.New().String()
	if n.Timestamp == 0 {
		n.Timestamp = model.NowMillis()
	}
	if n.Type == "" {
		n.Type = model.TypeGeneral
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, userID, n.Title, n.Message, string(n.Type),
		n.Timestamp, boolToInt(n.IsRead),
		nullString(n.RelatedPostID), nullString(n.SenderName),
	)
	if err != nil {
		return model.Notification{}, fmt.Errorf("creating notification: %w", err)
	}

	s.publish(userID, feed.Added(n))
	return n, nil
}

// getRow loads a single row by id.
func (s *SQLiteStore) getRow(ctx context.Context, id string) (notificationRow, error) {
	var row notificationRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+selectColumns+" FROM notifications WHERE id = ?", id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return row, fmt.Errorf("getting notification %s: %w", id, feed.ErrNotFound)
	}
	if err != nil {
		return row, fmt.Errorf("getting notification %s: %w", id, err)
	}
	return row, nil
}

func (s *SQLiteStore) publish(userID string, ev feed.Event) {
	if evicted := s.hub.Publish(userID, ev); evicted > 0 {
		s.logger.Warn().
			Str("user_id", userID).
			Stringer("kind", ev.Kind).
			Int("evicted", evicted).
			Msg("subscriber fell behind, stream closed")
	}
}

// document converts a row into the generic document shape feed.Decode reads.
func (r notificationRow) document() map[string]any {
	doc := map[string]any{
		"id":        r.ID,
		"userId":    r.UserID,
		"title":     r.Title,
		"message":   r.Message,
		"type":      r.Type,
		"timestamp": r.Timestamp,
		"isRead":    r.IsRead != 0,
	}
	if r.RelatedPostID.Valid {
		doc["relatedPostId"] = r.RelatedPostID.String
	}
	if r.SenderName.Valid {
		doc["senderName"] = r.SenderName.String
	}
	return doc
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
