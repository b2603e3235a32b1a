// Package config loads process configuration: a flat struct populated
// from environment variables with typed getters and explicit defaults.
// No config file indirection (viper/yaml) is used here; see DESIGN.md
// for the reasoning.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the transaction execution core needs at
// process startup.
type Config struct {
	DataDir     string
	GenesisPath string
	ListenAddr  string
	MetricsAddr string

	MaxAuthorityDepth    uint16
	MaxInlineActionDepth uint32
	MaxInlineActionSize  uint32

	// Elastic resource-limit targets, as a percentage of the hard cap;
	// both default to 50%, matching pulsevm's chain config.
	TargetBlockNetUsagePct uint32
	TargetBlockCPUUsagePct uint32

	LogPretty bool
}

// Load reads Config from the environment, applying defaults for anything
// unset.
func Load() Config {
	return Config{
		DataDir:                getEnvString("PULSE_DATA_DIR", "./data"),
		GenesisPath:             getEnvString("PULSE_GENESIS", "./genesis.yaml"),
		ListenAddr:              getEnvString("PULSE_LISTEN_ADDR", ":8888"),
		MetricsAddr:             getEnvString("PULSE_METRICS_ADDR", ":9102"),
		MaxAuthorityDepth:       uint16(getEnvInt("PULSE_MAX_AUTHORITY_DEPTH", 6)),
		MaxInlineActionDepth:    uint32(getEnvInt("PULSE_MAX_INLINE_ACTION_DEPTH", 4)),
		MaxInlineActionSize:     uint32(getEnvInt("PULSE_MAX_INLINE_ACTION_SIZE", 4096)),
		TargetBlockNetUsagePct:  uint32(getEnvInt("PULSE_TARGET_NET_USAGE_PCT", 50)),
		TargetBlockCPUUsagePct:  uint32(getEnvInt("PULSE_TARGET_CPU_USAGE_PCT", 50)),
		LogPretty:               getEnvBool("PULSE_LOG_PRETTY", false),
	}
}

func getEnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
