package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"tg_resumo_bot/internal/domain"
)

// MemorySummaryStore is an in-memory SummaryStore used in tests and for
// running the bot without a database in development.
type MemorySummaryStore struct {
	mu       sync.Mutex
	enabled  bool
	groups   map[string]domain.GroupSummary
	defaults domain.GroupSummary

	// SaveErr, when set, is returned by Save and every mutation, simulating a
	// failing persistence backend.
	SaveErr error
	// Saves counts Save calls.
	Saves int
}

// NewMemorySummaryStore constructs an empty MemorySummaryStore.
func NewMemorySummaryStore() *MemorySummaryStore {
	return &MemorySummaryStore{
		groups:   make(map[string]domain.GroupSummary),
		defaults: domain.DefaultGroupSummary(),
	}
}

// Enabled reports the global flag.
func (s *MemorySummaryStore) Enabled(ctx context.Context) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled, nil
}

// SetEnabled flips the global flag.
func (s *MemorySummaryStore) SetEnabled(ctx context.Context, enabled bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if s.SaveErr != nil {
		return &domain.PersistenceError{Op: "write settings", Err: s.SaveErr}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	return nil
}

// Defaults returns the stock group settings.
func (s *MemorySummaryStore) Defaults() domain.GroupSummary {
	return s.defaults
}

// Get fetches one group's configuration.
func (s *MemorySummaryStore) Get(ctx context.Context, group string) (domain.GroupSummary, bool, error) {
	if err := s.check(ctx); err != nil {
		return domain.GroupSummary{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.groups[group]
	return cfg, ok, nil
}

// Set stores one group's configuration.
func (s *MemorySummaryStore) Set(ctx context.Context, group string, cfg domain.GroupSummary) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if s.SaveErr != nil {
		return &domain.PersistenceError{Op: "write group", Err: s.SaveErr}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[group] = cfg
	return nil
}

// Delete removes one group's configuration.
func (s *MemorySummaryStore) Delete(ctx context.Context, group string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if s.SaveErr != nil {
		return &domain.PersistenceError{Op: "delete group", Err: s.SaveErr}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, group)
	return nil
}

// GroupNames lists configured group names in ascending order.
func (s *MemorySummaryStore) GroupNames(ctx context.Context) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.groups))
	for name := range s.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Save records the flush request.
func (s *MemorySummaryStore) Save(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Saves++
	if s.SaveErr != nil {
		return &domain.PersistenceError{Op: "save", Err: s.SaveErr}
	}
	return nil
}

func (s *MemorySummaryStore) check(ctx context.Context) error {
	if s == nil {
		return errors.New("summary store is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}
