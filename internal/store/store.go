// Package store provides storage backends for StreakBot.
//
// It includes an in-memory store used by tests, an SQLite store for
// single-node deployments, and a PostgreSQL store. All backends satisfy
// the Store interface consumed by the dispatcher, wizard, and streak
// engine. Every operation takes a context so callers can bound storage
// latency below the webhook processing deadline.
package store

import (
	"context"
	"time"

	"github.com/BTreeMap/StreakBot/internal/models"
)

// Store is the document-store abstraction the core depends on.
type Store interface {
	// GetActor returns the actor with relapse history, or nil when absent.
	GetActor(ctx context.Context, id string) (*models.Actor, error)
	// UpsertActor creates the actor on first interaction or refreshes the
	// display name, and returns the current record.
	UpsertActor(ctx context.Context, id, firstName string) (*models.Actor, error)
	// SetWizardState replaces the actor's wizard state.
	SetWizardState(ctx context.Context, id string, state models.WizardState) error
	// RecordRelapse applies the relapse unit atomically: append the history
	// entry, ratchet best streak, and reset the streak start.
	RecordRelapse(ctx context.Context, id string, relapse models.Relapse, newStart time.Time, bestStreak int) error
	// TopActorsByStreakStart returns up to n actors ordered by streak start
	// ascending (oldest streak first). Ties break by actor id.
	TopActorsByStreakStart(ctx context.Context, n int) ([]models.Actor, error)
	CountActors(ctx context.Context) (int, error)

	// GetConfig returns the configuration value for key, or def when absent.
	GetConfig(ctx context.Context, key, def string) (string, error)
	// SetConfig upserts the configuration entry wholesale.
	SetConfig(ctx context.Context, key, value string) error

	ListChannels(ctx context.Context) ([]models.Channel, error)
	AddChannel(ctx context.Context, ch models.Channel) error
	// DeleteChannel removes a channel, returning models.ErrNotFound when
	// the id does not exist.
	DeleteChannel(ctx context.Context, id int64) error

	ListCustomReplies(ctx context.Context) ([]models.CustomReply, error)
	// GetCustomReply returns the reply bound to label, or nil when absent.
	GetCustomReply(ctx context.Context, label string) (*models.CustomReply, error)
	// AddCustomReply stores a new reply. A label collision yields an error
	// wrapping models.ErrDuplicateLabel.
	AddCustomReply(ctx context.Context, r models.CustomReply) error
	DeleteCustomReply(ctx context.Context, id int64) error

	AddMotivation(ctx context.Context, text string) error
	// RandomMotivation returns a uniformly random motivation, or nil when
	// the pool is empty.
	RandomMotivation(ctx context.Context) (*models.Motivation, error)
	CountMotivations(ctx context.Context) (int, error)

	// RecordEvent inserts the event id into the dedup ledger. It returns
	// false when the id was already recorded. The check is enforced by the
	// store's uniqueness constraint, never read-then-write.
	RecordEvent(ctx context.Context, eventID string) (bool, error)
	// PurgeDedupBefore deletes ledger entries received before cutoff and
	// returns the number removed.
	PurgeDedupBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}
