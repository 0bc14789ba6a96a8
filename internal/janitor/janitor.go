// Package janitor enforces the dedup ledger's retention window.
//
// The SQL stores have no TTL mechanism, so a cron schedule deletes
// records older than the retention window. The window only needs to
// cover the platform's redelivery horizon; anything older can never
// collide with a live event id.
package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/StreakBot/internal/store"
	"github.com/robfig/cron/v3"
)

// Defaults for the purge schedule and retention window.
const (
	DefaultSchedule  = "@every 10m"
	DefaultRetention = time.Hour
	purgeTimeout     = 30 * time.Second
)

// Janitor periodically purges expired dedup records.
type Janitor struct {
	store     store.Store
	retention time.Duration
	schedule  string
	cron      *cron.Cron
}

// New creates a janitor. Zero retention and empty schedule fall back to
// the defaults.
func New(st store.Store, retention time.Duration, schedule string) *Janitor {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Janitor{store: st, retention: retention, schedule: schedule}
}

// Start begins the purge schedule.
func (j *Janitor) Start() error {
	j.cron = cron.New()
	if _, err := j.cron.AddFunc(j.schedule, j.purge); err != nil {
		return err
	}
	j.cron.Start()
	slog.Info("Janitor started", "schedule", j.schedule, "retention", j.retention)
	return nil
}

// Stop halts the schedule, waiting for an in-flight purge to finish.
func (j *Janitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

func (j *Janitor) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()
	if _, err := j.RunOnce(ctx); err != nil {
		slog.Error("Janitor purge failed", "error", err)
	}
}

// RunOnce purges expired records immediately and returns the count removed.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-j.retention)
	removed, err := j.store.PurgeDedupBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		slog.Debug("Janitor purged dedup records", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}
