package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
)

// SyncConfig holds sync engine tuning. The strategy is only a default;
// each sync request may name its own.
type SyncConfig struct {
	// DefaultStrategy applies when a request carries no
	// conflict_resolution field: newer_wins, client_wins, server_wins
	// or merge.
	DefaultStrategy string `json:"default_strategy"`

	// MaxCASRetries bounds how often one record is re-read and
	// re-resolved after losing a compare-and-swap race before the
	// cycle gives up on it (per-record error, batch continues).
	MaxCASRetries int `json:"max_cas_retries"`

	// MaxBatchRecords rejects oversized upload batches outright.
	// 0 disables the limit.
	MaxBatchRecords int `json:"max_batch_records"`
}

// LoadSyncConfig loads sync configuration from a JSON file (when
// SYNC_CONFIG_PATH is set) or from environment variables.
func LoadSyncConfig() *SyncConfig {
	if configPath := os.Getenv("SYNC_CONFIG_PATH"); configPath != "" {
		if cfg, err := loadSyncConfigFromFile(configPath); err == nil {
			return cfg
		} else {
			log.Printf("⚠️  Could not read sync config %s, using env defaults: %v", configPath, err)
		}
	}
	return DefaultSyncConfig()
}

// loadSyncConfigFromFile loads sync config from a JSON file. Fields the
// file leaves out keep their defaults, so a partial file cannot zero
// out the strategy.
func loadSyncConfigFromFile(path string) (*SyncConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultSyncConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultSyncConfig returns the environment-driven defaults.
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		DefaultStrategy: getEnv("SYNC_DEFAULT_STRATEGY", "newer_wins"),
		MaxCASRetries:   getIntEnv("SYNC_MAX_CAS_RETRIES", 3),
		MaxBatchRecords: getIntEnv("SYNC_MAX_BATCH_RECORDS", 1000),
	}
}

// Helper functions for environment variables

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
