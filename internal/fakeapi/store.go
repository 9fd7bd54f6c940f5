// Package fakeapi is an in-memory implementation of the remote activity service.
// `acalls serve` exposes it over HTTP; tests use it directly or through httptest.
package fakeapi

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/mph-llm-experiments/acalls/internal/model"
	"github.com/mph-llm-experiments/acalls/internal/parser"
	"github.com/mph-llm-experiments/acalls/internal/service"
)

// Store holds the backend's activities. When statePath is set every mutation is
// written back to that file.
type Store struct {
	mu         sync.RWMutex
	activities []model.Activity
	statePath  string
}

func NewStore(seed []model.Activity) *Store {
	activities := make([]model.Activity, len(seed))
	copy(activities, seed)
	return &Store{activities: activities}
}

// OpenStore loads statePath if it exists, otherwise starts from seed and creates it.
// An existing file that fails to parse is an error; it is never overwritten.
func OpenStore(statePath string, seed []model.Activity) (*Store, error) {
	activities, err := parser.ParseActivityFile(statePath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to open state %s: %w", statePath, err)
	}
	if err != nil {
		s := NewStore(seed)
		s.statePath = statePath
		if err := s.persist(); err != nil {
			return nil, err
		}
		return s, nil
	}
	s := NewStore(activities)
	s.statePath = statePath
	return s, nil
}

func (s *Store) ListActivities(ctx context.Context) ([]model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Activity, len(s.activities))
	copy(out, s.activities)
	return out, nil
}

func (s *Store) GetActivity(ctx context.Context, id model.ActivityID) (model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := model.FindByID(s.activities, id)
	if a == nil {
		return model.Activity{}, service.ErrNotFound
	}
	return *a, nil
}

func (s *Store) SetArchived(ctx context.Context, id model.ActivityID, archived bool) (model.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := model.FindByID(s.activities, id)
	if a == nil {
		return model.Activity{}, service.ErrNotFound
	}
	previous := a.IsArchived
	a.IsArchived = archived
	if err := s.persist(); err != nil {
		a.IsArchived = previous
		return model.Activity{}, err
	}
	return *a, nil
}

func (s *Store) ResetActivities(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]model.Activity, len(s.activities))
	copy(snapshot, s.activities)

	for i := range s.activities {
		s.activities[i].IsArchived = false
	}
	if err := s.persist(); err != nil {
		s.activities = snapshot
		return err
	}
	return nil
}

// persist must be called with mu held.
func (s *Store) persist() error {
	if s.statePath == "" {
		return nil
	}
	if err := parser.SaveActivityFile(s.statePath, s.activities); err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	return nil
}

// DefaultSeed returns a small call history spread over the days before now.
func DefaultSeed(now time.Time) []model.Activity {
	type call struct {
		ago       time.Duration
		from, to  string
		via       string
		direction model.Direction
		callType  model.CallType
		duration  int
		archived  bool
	}
	calls := []call{
		{35 * time.Minute, "+33 6 45 13 53 91", "+33 1 88 45 07 64", "Support FR", model.DirectionInbound, model.CallMissed, 0, false},
		{2 * time.Hour, "+33 1 88 45 07 64", "+33 6 19 71 28 01", "Support FR", model.DirectionOutbound, model.CallAnswered, 184, false},
		{5 * time.Hour, "+44 20 7946 0958", "+33 1 88 45 07 64", "Sales UK", model.DirectionInbound, model.CallAnswered, 312, false},
		{27 * time.Hour, "+33 7 81 20 96 44", "+33 1 88 45 07 64", "Support FR", model.DirectionInbound, model.CallMissed, 0, true},
		{29 * time.Hour, "+33 1 88 45 07 64", "+1 415 555 0132", "Sales US", model.DirectionOutbound, model.CallMissed, 0, false},
		{52 * time.Hour, "+1 415 555 0132", "+33 1 88 45 07 64", "Sales US", model.DirectionInbound, model.CallAnswered, 65, false},
		{53 * time.Hour, "+33 6 45 13 53 91", "+33 1 88 45 07 64", "Support FR", model.DirectionInbound, "voicemail", 22, true},
		{75 * time.Hour, "+33 1 88 45 07 64", "+44 20 7946 0958", "Sales UK", model.DirectionOutbound, model.CallAnswered, 1290, false},
	}

	out := make([]model.Activity, len(calls))
	for i, c := range calls {
		out[i] = model.Activity{
			ID:         model.ActivityID(fmt.Sprintf("%d", 7830+i)),
			From:       c.from,
			To:         c.to,
			Via:        c.via,
			Direction:  c.direction,
			CallType:   c.callType,
			Duration:   c.duration,
			CreatedAt:  now.Add(-c.ago).UTC().Format("2006-01-02T15:04:05.000Z"),
			IsArchived: c.archived,
		}
	}
	return out
}

var _ service.ActivityService = (*Store)(nil)
