// Package store provides storage backends for StreakBot.
//
// This file implements a mutex-guarded in-memory store. It backs unit
// tests and small ephemeral deployments; data does not survive restarts.
package store

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/StreakBot/internal/models"
)

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)

// InMemoryStore keeps all collections in process memory.
type InMemoryStore struct {
	mu          sync.Mutex
	actors      map[string]*models.Actor
	config      map[string]string
	channels    []models.Channel
	replies     []models.CustomReply
	motivations []models.Motivation
	dedup       map[string]time.Time
	nextID      int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		actors: make(map[string]*models.Actor),
		config: make(map[string]string),
		dedup:  make(map[string]time.Time),
	}
}

func (s *InMemoryStore) allocID() int64 {
	s.nextID++
	return s.nextID
}

func copyActor(a *models.Actor) *models.Actor {
	cp := *a
	cp.RelapseHistory = append([]models.Relapse(nil), a.RelapseHistory...)
	if a.Wizard.TempData != nil {
		cp.Wizard.TempData = make(map[string]string, len(a.Wizard.TempData))
		for k, v := range a.Wizard.TempData {
			cp.Wizard.TempData[k] = v
		}
	}
	return &cp
}

func (s *InMemoryStore) GetActor(ctx context.Context, id string) (*models.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[id]
	if !ok {
		return nil, nil
	}
	return copyActor(a), nil
}

func (s *InMemoryStore) UpsertActor(ctx context.Context, id, firstName string) (*models.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[id]
	if !ok {
		a = &models.Actor{ID: id, FirstName: firstName, StreakStart: time.Now()}
		s.actors[id] = a
	} else if firstName != "" {
		a.FirstName = firstName
	}
	return copyActor(a), nil
}

func (s *InMemoryStore) SetWizardState(ctx context.Context, id string, state models.WizardState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[id]
	if !ok {
		a = &models.Actor{ID: id, StreakStart: time.Now()}
		s.actors[id] = a
	}
	a.Wizard = state
	return nil
}

func (s *InMemoryStore) RecordRelapse(ctx context.Context, id string, relapse models.Relapse, newStart time.Time, bestStreak int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[id]
	if !ok {
		return fmt.Errorf("record relapse for %s: %w", id, models.ErrNotFound)
	}
	a.RelapseHistory = append(a.RelapseHistory, relapse)
	a.BestStreak = bestStreak
	a.StreakStart = newStart
	return nil
}

func (s *InMemoryStore) TopActorsByStreakStart(ctx context.Context, n int) ([]models.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]models.Actor, 0, len(s.actors))
	for _, a := range s.actors {
		all = append(all, *copyActor(a))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].StreakStart.Equal(all[j].StreakStart) {
			return all[i].ID < all[j].ID
		}
		return all[i].StreakStart.Before(all[j].StreakStart)
	})
	if n < len(all) {
		all = all[:n]
	}
	return all, nil
}

func (s *InMemoryStore) CountActors(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actors), nil
}

func (s *InMemoryStore) GetConfig(ctx context.Context, key, def string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.config[key]; ok {
		return v, nil
	}
	return def, nil
}

func (s *InMemoryStore) SetConfig(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config[key] = value
	return nil
}

func (s *InMemoryStore) ListChannels(ctx context.Context) ([]models.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Channel(nil), s.channels...), nil
}

func (s *InMemoryStore) AddChannel(ctx context.Context, ch models.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch.ID = s.allocID()
	s.channels = append(s.channels, ch)
	return nil
}

func (s *InMemoryStore) DeleteChannel(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ch := range s.channels {
		if ch.ID == id {
			s.channels = append(s.channels[:i], s.channels[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete channel %d: %w", id, models.ErrNotFound)
}

func (s *InMemoryStore) ListCustomReplies(ctx context.Context) ([]models.CustomReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CustomReply(nil), s.replies...), nil
}

func (s *InMemoryStore) GetCustomReply(ctx context.Context, label string) (*models.CustomReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.replies {
		if r.Label == label {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) AddCustomReply(ctx context.Context, r models.CustomReply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.replies {
		if existing.Label == r.Label {
			return fmt.Errorf("add custom reply %q: %w", r.Label, models.ErrDuplicateLabel)
		}
	}
	r.ID = s.allocID()
	s.replies = append(s.replies, r)
	return nil
}

func (s *InMemoryStore) DeleteCustomReply(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.replies {
		if r.ID == id {
			s.replies = append(s.replies[:i], s.replies[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete custom reply %d: %w", id, models.ErrNotFound)
}

func (s *InMemoryStore) AddMotivation(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.motivations = append(s.motivations, models.Motivation{
		ID:      s.allocID(),
		Text:    text,
		AddedAt: time.Now(),
	})
	return nil
}

func (s *InMemoryStore) RandomMotivation(ctx context.Context) (*models.Motivation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.motivations) == 0 {
		return nil, nil
	}
	m := s.motivations[rand.Intn(len(s.motivations))]
	return &m, nil
}

func (s *InMemoryStore) CountMotivations(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.motivations), nil
}

func (s *InMemoryStore) RecordEvent(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.dedup[eventID]; seen {
		return false, nil
	}
	s.dedup[eventID] = time.Now()
	return true, nil
}

func (s *InMemoryStore) PurgeDedupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, at := range s.dedup {
		if at.Before(cutoff) {
			delete(s.dedup, id)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
