package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"packages/internal/remotesync"
	"packages/internal/store"
)

const configKeySync = "sync"

// SyncConfig is the database-backed periodic sync configuration.
type SyncConfig struct {
	Enabled         bool `json:"enabled"`
	IntervalSeconds int  `json:"interval_seconds"`
	DelaySeconds    int  `json:"delay_seconds"`
	Concurrency     int  `json:"concurrency"`
}

func (c SyncConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c SyncConfig) Delay() time.Duration {
	if c.DelaySeconds <= 0 {
		return 0
	}
	return time.Duration(c.DelaySeconds) * time.Second
}

func (c SyncConfig) ConcurrencyOrDefault() int {
	if c.Concurrency <= 0 {
		return 4
	}
	return c.Concurrency
}

func (c SyncConfig) Validate() error {
	if c.IntervalSeconds < 0 || c.DelaySeconds < 0 || c.Concurrency < 0 {
		return fmt.Errorf("%w: sync settings cannot be negative", ErrInvalidInput)
	}
	return nil
}

func (s *Service) GetSyncConfig(ctx context.Context) (SyncConfig, error) {
	raw, err := s.store.GetSystemConfig(ctx, configKeySync)
	if err != nil {
		if store.IsNotFound(err) {
			return SyncConfig{Concurrency: 4}, nil
		}
		return SyncConfig{}, err
	}
	var cfg SyncConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return SyncConfig{}, fmt.Errorf("parse sync config: %w", err)
	}
	return cfg, nil
}

func (s *Service) SaveSyncConfig(ctx context.Context, cfg SyncConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.store.UpsertSystemConfig(ctx, configKeySync, raw)
}

// SeedSyncConfig writes the sync config into the DB only if it doesn't exist yet.
func (s *Service) SeedSyncConfig(ctx context.Context, cfg SyncConfig) error {
	_, err := s.store.GetSystemConfig(ctx, configKeySync)
	if err == nil {
		return nil
	}
	if !store.IsNotFound(err) {
		return err
	}
	return s.SaveSyncConfig(ctx, cfg)
}

// GetWorkerConfig lets the periodic worker follow configuration changes.
func (s *Service) GetWorkerConfig(ctx context.Context) (remotesync.WorkerConfig, error) {
	cfg, err := s.GetSyncConfig(ctx)
	if err != nil {
		return remotesync.WorkerConfig{}, err
	}
	return remotesync.WorkerConfig{
		Enabled:      cfg.Enabled,
		StartupDelay: cfg.Delay(),
		Interval:     cfg.Interval(),
		Concurrency:  cfg.ConcurrencyOrDefault(),
	}, nil
}
