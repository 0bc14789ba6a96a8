// Package store provides storage backends for StreakBot.
//
// This file implements the SQLite-backed store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/BTreeMap/StreakBot/internal/models"
	"github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore persists all collections in a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// isSQLiteUniqueViolation reports whether err is a unique-constraint failure.
func isSQLiteUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func (s *SQLiteStore) GetActor(ctx context.Context, id string) (*models.Actor, error) {
	var a models.Actor
	var wizardStep, wizardData string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, streak_start, best_streak, wizard_step, wizard_data FROM actors WHERE id = ?`, id,
	).Scan(&a.ID, &a.FirstName, &a.StreakStart, &a.BestStreak, &wizardStep, &wizardData)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetActor failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query actor %s: %w", id, err)
	}
	if err := decodeWizardState(wizardStep, wizardData, &a.Wizard); err != nil {
		return nil, fmt.Errorf("failed to decode wizard state for %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT at, reason FROM relapses WHERE actor_id = ? ORDER BY id`, id)
	if err != nil {
		slog.Error("SQLiteStore GetActor relapse query failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query relapses for %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var r models.Relapse
		if err := rows.Scan(&r.At, &r.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan relapse row: %w", err)
		}
		a.RelapseHistory = append(a.RelapseHistory, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate relapse rows: %w", err)
	}
	return &a, nil
}

func (s *SQLiteStore) UpsertActor(ctx context.Context, id, firstName string) (*models.Actor, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO actors (id, first_name, streak_start) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET first_name = CASE WHEN excluded.first_name = '' THEN actors.first_name ELSE excluded.first_name END`,
		id, firstName, time.Now())
	if err != nil {
		slog.Error("SQLiteStore UpsertActor failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to upsert actor %s: %w", id, err)
	}
	return s.GetActor(ctx, id)
}

func (s *SQLiteStore) SetWizardState(ctx context.Context, id string, state models.WizardState) error {
	data, err := encodeWizardData(state)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE actors SET wizard_step = ?, wizard_data = ? WHERE id = ?`,
		string(state.Step), data, id)
	if err != nil {
		slog.Error("SQLiteStore SetWizardState failed", "error", err, "id", id)
		return fmt.Errorf("failed to set wizard state for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("wizard state rows affected check failed: %w", err)
	}
	if n == 0 {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO actors (id, streak_start, wizard_step, wizard_data) VALUES (?, ?, ?, ?)`,
			id, time.Now(), string(state.Step), data)
		if err != nil {
			return fmt.Errorf("failed to create actor %s for wizard state: %w", id, err)
		}
	}
	return nil
}

func (s *SQLiteStore) RecordRelapse(ctx context.Context, id string, relapse models.Relapse, newStart time.Time, bestStreak int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin relapse transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO relapses (actor_id, at, reason) VALUES (?, ?, ?)`,
		id, relapse.At, relapse.Reason); err != nil {
		slog.Error("SQLiteStore RecordRelapse insert failed", "error", err, "id", id)
		return fmt.Errorf("failed to insert relapse for %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE actors SET streak_start = ?, best_streak = ? WHERE id = ?`,
		newStart, bestStreak, id)
	if err != nil {
		slog.Error("SQLiteStore RecordRelapse update failed", "error", err, "id", id)
		return fmt.Errorf("failed to update actor %s on relapse: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("relapse rows affected check failed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record relapse for %s: %w", id, models.ErrNotFound)
	}
	return tx.Commit()
}

func (s *SQLiteStore) TopActorsByStreakStart(ctx context.Context, n int) ([]models.Actor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, first_name, streak_start, best_streak FROM actors ORDER BY streak_start ASC, id ASC LIMIT ?`, n)
	if err != nil {
		slog.Error("SQLiteStore TopActorsByStreakStart failed", "error", err)
		return nil, fmt.Errorf("failed to query top actors: %w", err)
	}
	defer rows.Close()
	var actors []models.Actor
	for rows.Next() {
		var a models.Actor
		if err := rows.Scan(&a.ID, &a.FirstName, &a.StreakStart, &a.BestStreak); err != nil {
			return nil, fmt.Errorf("failed to scan actor row: %w", err)
		}
		actors = append(actors, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate actor rows: %w", err)
	}
	return actors, nil
}

func (s *SQLiteStore) CountActors(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM actors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count actors: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) GetConfig(ctx context.Context, key, def string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConfig failed", "error", err, "key", key)
		return "", fmt.Errorf("failed to query config %s: %w", key, err)
	}
	return v, nil
}

func (s *SQLiteStore) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		slog.Error("SQLiteStore SetConfig failed", "error", err, "key", key)
		return fmt.Errorf("failed to set config %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) ListChannels(ctx context.Context) ([]models.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, link FROM channels ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()
	var channels []models.Channel
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Link); err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate channel rows: %w", err)
	}
	return channels, nil
}

func (s *SQLiteStore) AddChannel(ctx context.Context, ch models.Channel) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO channels (name, link) VALUES (?, ?)`, ch.Name, ch.Link)
	if err != nil {
		slog.Error("SQLiteStore AddChannel failed", "error", err, "name", ch.Name)
		return fmt.Errorf("failed to insert channel %s: %w", ch.Name, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteChannel(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete channel %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("channel rows affected check failed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete channel %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListCustomReplies(ctx context.Context) ([]models.CustomReply, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, label, type, content, caption FROM custom_replies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom replies: %w", err)
	}
	defer rows.Close()
	var replies []models.CustomReply
	for rows.Next() {
		var r models.CustomReply
		if err := rows.Scan(&r.ID, &r.Label, &r.Type, &r.Content, &r.Caption); err != nil {
			return nil, fmt.Errorf("failed to scan custom reply row: %w", err)
		}
		replies = append(replies, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate custom reply rows: %w", err)
	}
	return replies, nil
}

func (s *SQLiteStore) GetCustomReply(ctx context.Context, label string) (*models.CustomReply, error) {
	var r models.CustomReply
	err := s.db.QueryRowContext(ctx,
		`SELECT id, label, type, content, caption FROM custom_replies WHERE label = ?`, label,
	).Scan(&r.ID, &r.Label, &r.Type, &r.Content, &r.Caption)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query custom reply %s: %w", label, err)
	}
	return &r, nil
}

func (s *SQLiteStore) AddCustomReply(ctx context.Context, r models.CustomReply) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO custom_replies (label, type, content, caption) VALUES (?, ?, ?, ?)`,
		r.Label, string(r.Type), r.Content, r.Caption)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return fmt.Errorf("add custom reply %q: %w", r.Label, models.ErrDuplicateLabel)
		}
		slog.Error("SQLiteStore AddCustomReply failed", "error", err, "label", r.Label)
		return fmt.Errorf("failed to insert custom reply %s: %w", r.Label, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteCustomReply(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM custom_replies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete custom reply %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("custom reply rows affected check failed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete custom reply %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) AddMotivation(ctx context.Context, text string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO motivations (text, added_at) VALUES (?, ?)`, text, time.Now())
	if err != nil {
		slog.Error("SQLiteStore AddMotivation failed", "error", err)
		return fmt.Errorf("failed to insert motivation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RandomMotivation(ctx context.Context) (*models.Motivation, error) {
	var m models.Motivation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, text, added_at FROM motivations ORDER BY RANDOM() LIMIT 1`,
	).Scan(&m.ID, &m.Text, &m.AddedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query random motivation: %w", err)
	}
	return &m, nil
}

func (s *SQLiteStore) CountMotivations(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM motivations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count motivations: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) RecordEvent(ctx context.Context, eventID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO inbound_dedup (event_id, received_at) VALUES (?, ?) ON CONFLICT(event_id) DO NOTHING`,
		eventID, time.Now())
	if err != nil {
		slog.Error("SQLiteStore RecordEvent failed", "error", err, "event_id", eventID)
		return false, fmt.Errorf("record event failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("dedup rows affected check failed: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) PurgeDedupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inbound_dedup WHERE received_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge dedup records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected check failed: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeWizardData marshals the wizard temp data for column storage.
func encodeWizardData(state models.WizardState) (string, error) {
	if len(state.TempData) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(state.TempData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal wizard data: %w", err)
	}
	return string(data), nil
}

// decodeWizardState reconstructs a WizardState from its columns.
func decodeWizardState(step, data string, out *models.WizardState) error {
	out.Step = models.WizardStep(step)
	if data == "" || data == "{}" {
		out.TempData = nil
		return nil
	}
	temp := make(map[string]string)
	if err := json.Unmarshal([]byte(data), &temp); err != nil {
		return fmt.Errorf("failed to unmarshal wizard data: %w", err)
	}
	out.TempData = temp
	return nil
}
