// Package store provides storage backends for StreakBot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/StreakBot/internal/models"
	"github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

// pqUniqueViolation is the PostgreSQL error code for unique_violation.
const pqUniqueViolation = "23505"

//go:embed migrations_postgres.sql
var postgresMigrations string

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore persists all collections in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// isPostgresUniqueViolation reports whether err is a unique-constraint failure.
func isPostgresUniqueViolation(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return string(pe.Code) == pqUniqueViolation
	}
	return false
}

func (s *PostgresStore) GetActor(ctx context.Context, id string) (*models.Actor, error) {
	var a models.Actor
	var wizardStep, wizardData string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, streak_start, best_streak, wizard_step, wizard_data FROM actors WHERE id = $1`, id,
	).Scan(&a.ID, &a.FirstName, &a.StreakStart, &a.BestStreak, &wizardStep, &wizardData)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetActor failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query actor %s: %w", id, err)
	}
	if err := decodeWizardState(wizardStep, wizardData, &a.Wizard); err != nil {
		return nil, fmt.Errorf("failed to decode wizard state for %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT at, reason FROM relapses WHERE actor_id = $1 ORDER BY id`, id)
	if err != nil {
		slog.Error("PostgresStore GetActor relapse query failed", "error", err, "id", id)
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

func (s *PostgresStore) UpsertActor(ctx context.Context, id, firstName string) (*models.Actor, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO actors (id, first_name, streak_start) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET first_name = CASE WHEN excluded.first_name = '' THEN actors.first_name ELSE excluded.first_name END`,
		id, firstName, time.Now())
	if err != nil {
		slog.Error("PostgresStore UpsertActor failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to upsert actor %s: %w", id, err)
	}
	return s.GetActor(ctx, id)
}

func (s *PostgresStore) SetWizardState(ctx context.Context, id string, state models.WizardState) error {
	data, err := encodeWizardData(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO actors (id, streak_start, wizard_step, wizard_data) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET wizard_step = excluded.wizard_step, wizard_data = excluded.wizard_data`,
		id, time.Now(), string(state.Step), data)
	if err != nil {
		slog.Error("PostgresStore SetWizardState failed", "error", err, "id", id)
		return fmt.Errorf("failed to set wizard state for %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) RecordRelapse(ctx context.Context, id string, relapse models.Relapse, newStart time.Time, bestStreak int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin relapse transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO relapses (actor_id, at, reason) VALUES ($1, $2, $3)`,
		id, relapse.At, relapse.Reason); err != nil {
		slog.Error("PostgresStore RecordRelapse insert failed", "error", err, "id", id)
		return fmt.Errorf("failed to insert relapse for %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE actors SET streak_start = $1, best_streak = $2 WHERE id = $3`,
		newStart, bestStreak, id)
	if err != nil {
		slog.Error("PostgresStore RecordRelapse update failed", "error", err, "id", id)
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

func (s *PostgresStore) TopActorsByStreakStart(ctx context.Context, n int) ([]models.Actor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, first_name, streak_start, best_streak FROM actors ORDER BY streak_start ASC, id ASC LIMIT $1`, n)
	if err != nil {
		slog.Error("PostgresStore TopActorsByStreakStart failed", "error", err)
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

func (s *PostgresStore) CountActors(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM actors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count actors: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) GetConfig(ctx context.Context, key, def string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = $1`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConfig failed", "error", err, "key", key)
		return "", fmt.Errorf("failed to query config %s: %w", key, err)
	}
	return v, nil
}

func (s *PostgresStore) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		slog.Error("PostgresStore SetConfig failed", "error", err, "key", key)
		return fmt.Errorf("failed to set config %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) ListChannels(ctx context.Context) ([]models.Channel, error) {
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

func (s *PostgresStore) AddChannel(ctx context.Context, ch models.Channel) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO channels (name, link) VALUES ($1, $2)`, ch.Name, ch.Link)
	if err != nil {
		slog.Error("PostgresStore AddChannel failed", "error", err, "name", ch.Name)
		return fmt.Errorf("failed to insert channel %s: %w", ch.Name, err)
	}
	return nil
}

func (s *PostgresStore) DeleteChannel(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE id = $1`, id)
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

func (s *PostgresStore) ListCustomReplies(ctx context.Context) ([]models.CustomReply, error) {
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

func (s *PostgresStore) GetCustomReply(ctx context.Context, label string) (*models.CustomReply, error) {
	var r models.CustomReply
	err := s.db.QueryRowContext(ctx,
		`SELECT id, label, type, content, caption FROM custom_replies WHERE label = $1`, label,
	).Scan(&r.ID, &r.Label, &r.Type, &r.Content, &r.Caption)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query custom reply %s: %w", label, err)
	}
	return &r, nil
}

func (s *PostgresStore) AddCustomReply(ctx context.Context, r models.CustomReply) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO custom_replies (label, type, content, caption) VALUES ($1, $2, $3, $4)`,
		r.Label, string(r.Type), r.Content, r.Caption)
	if err != nil {
		if isPostgresUniqueViolation(err) {
			return fmt.Errorf("add custom reply %q: %w", r.Label, models.ErrDuplicateLabel)
		}
		slog.Error("PostgresStore AddCustomReply failed", "error", err, "label", r.Label)
		return fmt.Errorf("failed to insert custom reply %s: %w", r.Label, err)
	}
	return nil
}

func (s *PostgresStore) DeleteCustomReply(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM custom_replies WHERE id = $1`, id)
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

func (s *PostgresStore) AddMotivation(ctx context.Context, text string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO motivations (text, added_at) VALUES ($1, $2)`, text, time.Now())
	if err != nil {
		slog.Error("PostgresStore AddMotivation failed", "error", err)
		return fmt.Errorf("failed to insert motivation: %w", err)
	}
	return nil
}

func (s *PostgresStore) RandomMotivation(ctx context.Context) (*models.Motivation, error) {
	var m models.Motivation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, text, added_at FROM motivations ORDER BY random() LIMIT 1`,
	).Scan(&m.ID, &m.Text, &m.AddedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query random motivation: %w", err)
	}
	return &m, nil
}

func (s *PostgresStore) CountMotivations(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM motivations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count motivations: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) RecordEvent(ctx context.Context, eventID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO inbound_dedup (event_id, received_at) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING`,
		eventID, time.Now())
	if err != nil {
		slog.Error("PostgresStore RecordEvent failed", "error", err, "event_id", eventID)
		return false, fmt.Errorf("record event failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("dedup rows affected check failed: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) PurgeDedupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inbound_dedup WHERE received_at < $1`, cutoff)
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
