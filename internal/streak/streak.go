// Package streak implements the streak and relapse engine.
//
// Streak length is duration-based: whole days elapsed since the tracked
// start time, not calendar-day boundaries crossed.
package streak

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/StreakBot/internal/models"
	"github.com/BTreeMap/StreakBot/internal/store"
)

// DefaultLeaderboardSize is the number of actors shown on the leaderboard.
const DefaultLeaderboardSize = 10

// ElapsedDays returns the whole days between start and now, truncating
// toward zero: floor(|now-start| / 24h). It is 0 when the times are equal
// and monotonically non-decreasing in now for a fixed start.
func ElapsedDays(start, now time.Time) int {
	d := now.Sub(start)
	if d < 0 {
		d = -d
	}
	return int(d / (24 * time.Hour))
}

// Standing is one leaderboard row with the elapsed days computed at query
// time.
type Standing struct {
	Actor models.Actor `json:"actor"`
	Days  int          `json:"days"`
}

// Engine computes streak state over actors persisted in a Store.
type Engine struct {
	store store.Store
}

// NewEngine creates a streak engine backed by the given store.
func NewEngine(st store.Store) *Engine {
	return &Engine{store: st}
}

// Status returns the actor's current streak standing, creating the actor
// lazily on first query (streak start = now, elapsed 0, best 0).
func (e *Engine) Status(ctx context.Context, actorID, firstName string, now time.Time) (*models.Actor, int, error) {
	actor, err := e.store.GetActor(ctx, actorID)
	if err != nil {
		return nil, 0, err
	}
	if actor == nil {
		actor, err = e.store.UpsertActor(ctx, actorID, firstName)
		if err != nil {
			return nil, 0, err
		}
		slog.Debug("Engine.Status created actor lazily", "actor_id", actorID)
	}
	return actor, ElapsedDays(actor.StreakStart, now), nil
}

// Relapse records a relapse for the actor: the best streak ratchets up to
// the just-ended streak length if longer, the reason is appended to the
// history, and the streak start resets to now. The store applies the unit
// atomically. Returns the ended streak length and the updated best streak.
func (e *Engine) Relapse(ctx context.Context, actorID, reason string, now time.Time) (int, int, error) {
	actor, err := e.store.GetActor(ctx, actorID)
	if err != nil {
		return 0, 0, err
	}
	if actor == nil {
		return 0, 0, fmt.Errorf("relapse for %s: %w", actorID, models.ErrNotFound)
	}
	ended := ElapsedDays(actor.StreakStart, now)
	best := actor.BestStreak
	if ended > best {
		best = ended
	}
	relapse := models.Relapse{At: now, Reason: reason}
	if err := e.store.RecordRelapse(ctx, actorID, relapse, now, best); err != nil {
		return 0, 0, err
	}
	slog.Debug("Engine.Relapse recorded", "actor_id", actorID, "reason", reason, "ended_days", ended, "best", best)
	return ended, best, nil
}

// Leaderboard returns up to n actors ranked by longest-running current
// streak (oldest streak start first), with elapsed days computed fresh
// against now.
func (e *Engine) Leaderboard(ctx context.Context, n int, now time.Time) ([]Standing, error) {
	actors, err := e.store.TopActorsByStreakStart(ctx, n)
	if err != nil {
		return nil, err
	}
	standings := make([]Standing, 0, len(actors))
	for _, a := range actors {
		standings = append(standings, Standing{Actor: a, Days: ElapsedDays(a.StreakStart, now)})
	}
	return standings, nil
}
