package streak

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/StreakBot/internal/models"
	"github.com/BTreeMap/StreakBot/internal/store"
)

func TestElapsedDays(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		start time.Time
		now   time.Time
		want  int
	}{
		{"equal times", base, base, 0},
		{"under one day", base, base.Add(23 * time.Hour), 0},
		{"exactly one day", base, base.Add(24 * time.Hour), 1},
		{"partial second day", base, base.Add(36 * time.Hour), 1},
		{"ten days", base, base.Add(10 * 24 * time.Hour), 10},
		{"clock skew yields absolute", base.Add(25 * time.Hour), base, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ElapsedDays(c.start, c.now); got != c.want {
				t.Errorf("ElapsedDays = %d, want %d", got, c.want)
			}
		})
	}
}

func TestElapsedDaysMonotonic(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	prev := -1
	for h := 0; h < 96; h += 7 {
		got := ElapsedDays(start, start.Add(time.Duration(h)*time.Hour))
		if got < prev {
			t.Fatalf("ElapsedDays decreased from %d to %d at hour %d", prev, got, h)
		}
		prev = got
	}
}

func TestStatusCreatesActorLazily(t *testing.T) {
	st := store.NewInMemoryStore()
	e := NewEngine(st)
	ctx := context.Background()

	actor, days, err := e.Status(ctx, "100", "Alice", time.Now())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if actor == nil || actor.ID != "100" {
		t.Fatalf("expected created actor 100, got %+v", actor)
	}
	if days != 0 {
		t.Errorf("expected fresh actor at 0 days, got %d", days)
	}
	if actor.BestStreak != 0 {
		t.Errorf("expected fresh actor best 0, got %d", actor.BestStreak)
	}
}

func TestRelapseRatchetsBestStreak(t *testing.T) {
	st := store.NewInMemoryStore()
	e := NewEngine(st)
	ctx := context.Background()
	now := time.Now()

	if _, err := st.UpsertActor(ctx, "100", "Alice"); err != nil {
		t.Fatalf("UpsertActor failed: %v", err)
	}
	// Backdate the streak so the ended run is 5 days.
	if err := st.RecordRelapse(ctx, "100", models.Relapse{At: now.Add(-5 * 24 * time.Hour), Reason: "seed"}, now.Add(-5*24*time.Hour), 0); err != nil {
		t.Fatalf("seed relapse failed: %v", err)
	}

	ended, best, err := e.Relapse(ctx, "100", "stress", now)
	if err != nil {
		t.Fatalf("Relapse failed: %v", err)
	}
	if ended != 5 {
		t.Errorf("expected ended streak 5, got %d", ended)
	}
	if best != 5 {
		t.Errorf("expected best ratcheted to 5, got %d", best)
	}

	// A shorter second run must not lower the best.
	ended, best, err = e.Relapse(ctx, "100", "bored", now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Relapse failed: %v", err)
	}
	if ended != 1 {
		t.Errorf("expected ended streak 1, got %d", ended)
	}
	if best != 5 {
		t.Errorf("expected best to stay 5, got %d", best)
	}

	actor, err := st.GetActor(ctx, "100")
	if err != nil {
		t.Fatalf("GetActor failed: %v", err)
	}
	if len(actor.RelapseHistory) != 3 {
		t.Errorf("expected 3 history entries, got %d", len(actor.RelapseHistory))
	}
	if actor.RelapseHistory[2].Reason != "bored" {
		t.Errorf("expected latest reason bored, got %q", actor.RelapseHistory[2].Reason)
	}
}

func TestRelapseUnknownActor(t *testing.T) {
	e := NewEngine(store.NewInMemoryStore())
	_, _, err := e.Relapse(context.Background(), "nope", "stress", time.Now())
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLeaderboardOrdersByOldestStart(t *testing.T) {
	st := store.NewInMemoryStore()
	e := NewEngine(st)
	ctx := context.Background()
	now := time.Now()

	fixtures := []struct {
		id   string
		days int
	}{
		{"mid", 3},
		{"long", 9},
		{"short", 1},
	}
	for _, f := range fixtures {
		if _, err := st.UpsertActor(ctx, f.id, f.id); err != nil {
			t.Fatalf("UpsertActor failed: %v", err)
		}
		start := now.Add(-time.Duration(f.days) * 24 * time.Hour)
		if err := st.RecordRelapse(ctx, f.id, models.Relapse{At: start}, start, 0); err != nil {
			t.Fatalf("backdate failed: %v", err)
		}
	}

	standings, err := e.Leaderboard(ctx, 2, now)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(standings) != 2 {
		t.Fatalf("expected 2 standings, got %d", len(standings))
	}
	if standings[0].Actor.ID != "long" || standings[0].Days != 9 {
		t.Errorf("expected long/9 first, got %s/%d", standings[0].Actor.ID, standings[0].Days)
	}
	if standings[1].Actor.ID != "mid" || standings[1].Days != 3 {
		t.Errorf("expected mid/3 second, got %s/%d", standings[1].Actor.ID, standings[1].Days)
	}
}
