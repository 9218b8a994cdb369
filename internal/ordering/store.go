// Package ordering keeps the user's preferred driver row order and the set
// of hidden drivers, persisted through an injected key-value store.
package ordering

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

const (
	orderKeyPrefix  = "planner.driverOrder:"
	hiddenKeyPrefix = "planner.hiddenDrivers:"
)

// OrderKey is the storage key of a profile's driver order.
func OrderKey(profile string) string {
	return orderKeyPrefix + profileOrDefault(profile)
}

// HiddenKey is the storage key of a profile's hidden drivers.
func HiddenKey(profile string) string {
	return hiddenKeyPrefix + profileOrDefault(profile)
}

func profileOrDefault(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}

// Store persists one list of driver IDs as a JSON array.
type Store struct {
	kv     KV
	key    string
	logger zerolog.Logger
}

// NewOrderStore returns the driver row order store for a profile.
func NewOrderStore(kv KV, profile string, logger zerolog.Logger) *Store {
	return newStore(kv, OrderKey(profile), logger)
}

// NewVisibilityStore returns the hidden-drivers store for a profile.
func NewVisibilityStore(kv KV, profile string, logger zerolog.Logger) *Store {
	return newStore(kv, HiddenKey(profile), logger)
}

func newStore(kv KV, key string, logger zerolog.Logger) *Store {
	return &Store{
		kv:     kv,
		key:    key,
		logger: logger.With().Str("component", "ordering").Str("key", key).Logger(),
	}
}

// Key returns the storage key.
func (s *Store) Key() string {
	return s.key
}

// Load returns the saved IDs, or nil when nothing was saved.
// An unreadable value is treated as absent.
func (s *Store) Load(ctx context.Context) ([]int64, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.key, err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		s.logger.Warn().Err(err).Msg("ignoring unreadable saved driver list")
		return nil, nil
	}
	return ids, nil
}

// Save replaces the stored list.
func (s *Store) Save(ctx context.Context, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key, string(raw)); err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	return nil
}

// SaveQuiet saves and logs failures instead of returning them.
// The caller keeps its in-memory order either way.
func (s *Store) SaveQuiet(ctx context.Context, ids []int64) bool {
	if err := s.Save(ctx, ids); err != nil {
		s.logger.Error().Err(err).Int("drivers", len(ids)).Msg("failed to persist driver list")
		return false
	}
	return true
}
