package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// InferenceCommand is the executable for the local inference runner.
	// Empty means no runner is spawned and all enrichment degrades to the
	// local heuristic fallback.
	InferenceCommand string `json:"inference_command,omitempty"`

	// InferenceArgs are passed to InferenceCommand.
	InferenceArgs []string `json:"inference_args,omitempty"`

	// InferenceTimeoutSecs bounds a single inference round trip.
	// 0 means use the default (60s).
	InferenceTimeoutSecs int `json:"inference_timeout_secs,omitempty"`

	// QueueDepthThreshold is the maximum scheduler queue depth at which the
	// backpressure gate still releases background batches. 0 means default (10).
	QueueDepthThreshold int `json:"queue_depth_threshold,omitempty"`

	// MinBatchSize is the minimum number of pending background tasks required
	// before the gate releases a batch. 0 means default (3).
	MinBatchSize int `json:"min_batch_size,omitempty"`

	// HistoryLimit is the default number of session snapshots returned by the
	// history operation. 0 means default (10). Capped by the stored ring of 50.
	HistoryLimit int `json:"history_limit,omitempty"`

	// WebBind and WebPort configure the dashboard server.
	WebBind string `json:"web_bind,omitempty"`
	WebPort int    `json:"web_port,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of type names to disable entirely.
	// All tools belonging to disabled types are excluded from registration.
	// Known types: "profile". Unknown type names are logged as warnings.
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		InferenceTimeoutSecs: 60,
		QueueDepthThreshold:  10,
		MinBatchSize:         3,
		HistoryLimit:         10,
		WebBind:              "127.0.0.1",
		WebPort:              7430,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.drift.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// File doesn't exist, return zero config
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.InferenceCommand = overlay.InferenceCommand
	if result.InferenceCommand == "" {
		result.InferenceCommand = base.InferenceCommand
	}

	result.InferenceTimeoutSecs = overlay.InferenceTimeoutSecs
	if result.InferenceTimeoutSecs == 0 {
		result.InferenceTimeoutSecs = base.InferenceTimeoutSecs
	}

	result.QueueDepthThreshold = overlay.QueueDepthThreshold
	if result.QueueDepthThreshold == 0 {
		result.QueueDepthThreshold = base.QueueDepthThreshold
	}

	result.MinBatchSize = overlay.MinBatchSize
	if result.MinBatchSize == 0 {
		result.MinBatchSize = base.MinBatchSize
	}

	result.HistoryLimit = overlay.HistoryLimit
	if result.HistoryLimit == 0 {
		result.HistoryLimit = base.HistoryLimit
	}

	result.WebBind = overlay.WebBind
	if result.WebBind == "" {
		result.WebBind = base.WebBind
	}

	result.WebPort = overlay.WebPort
	if result.WebPort == 0 {
		result.WebPort = base.WebPort
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// InferenceArgs is positional, not a set: overlay replaces rather than merges.
	result.InferenceArgs = overlay.InferenceArgs
	if len(result.InferenceArgs) == 0 {
		result.InferenceArgs = base.InferenceArgs
	}

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
