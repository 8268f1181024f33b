package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"

	"treeradius/internal/geocode"
	"treeradius/internal/sftrees"
)

const envPrefix = "TREERADIUS_"

// DefaultBlockLengthMeters is the US-average city block length.
const DefaultBlockLengthMeters = 182.88

type Config struct {
	GeocoderURL       string  `koanf:"geocoder_url"`
	GeocoderUserAgent string  `koanf:"geocoder_user_agent"`
	DatasetURL        string  `koanf:"dataset_url"`
	PageSize          int     `koanf:"page_size"`
	BlockLengthMeters float64 `koanf:"block_length_meters"`
	TimeoutSeconds    int     `koanf:"timeout_seconds"`
}

// Load returns the defaults overlaid with any TREERADIUS_* environment
// variables. CLI flags may still override individual fields afterwards.
func Load() (Config, error) {
	cfg := Config{
		GeocoderURL:       geocode.DefaultBaseURL,
		GeocoderUserAgent: "treeradius",
		DatasetURL:        sftrees.DefaultBaseURL,
		PageSize:          sftrees.DefaultPageSize,
		BlockLengthMeters: DefaultBlockLengthMeters,
		TimeoutSeconds:    15,
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.BlockLengthMeters <= 0 {
		return Config{}, fmt.Errorf("block length must be positive, got %g", cfg.BlockLengthMeters)
	}
	if cfg.TimeoutSeconds <= 0 {
		return Config{}, fmt.Errorf("timeout must be positive, got %d", cfg.TimeoutSeconds)
	}

	return cfg, nil
}
