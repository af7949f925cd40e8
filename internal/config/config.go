// Package config holds process configuration (env-first, optional YAML
// file) and the account credentials decoded from client tokens.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds server + loader settings. Environment variables
// (XTREAMCAT_*) override the optional YAML file, which overrides defaults.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	// Snapshot cache.
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	CacheMaxEntries int           `yaml:"cache_max_entries"`

	// Upstream timeouts. The probe is deliberately short; listing fetches
	// get the long timeout because full VOD catalogs can run to tens of MB.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// Requests per second against get_series_info when resolving episodes.
	SeriesInfoRate float64 `yaml:"series_info_rate"`

	// Container extensions for synthesized playback URLs. One consistent
	// default per kind; never varied per item.
	LiveExt   string `yaml:"live_ext"`
	VODExt    string `yaml:"vod_ext"`
	SeriesExt string `yaml:"series_ext"`

	// PreferM3U skips the player_api probe and goes straight to the
	// playlist format (for panels that only expose get.php).
	PreferM3U bool `yaml:"prefer_m3u"`

	// IncludeCategories controls whether category tables are fetched at
	// all; off, every item keeps its title-cased raw label.
	IncludeCategories bool `yaml:"include_categories"`

	// TreatZeroRatingAsAbsent drops "0" / "N/A" ratings instead of keeping
	// them as data. Panels disagree on whether 0 is a sentinel.
	TreatZeroRatingAsAbsent bool `yaml:"treat_zero_rating_as_absent"`

	LogLevel string `yaml:"log_level"`
}

func defaults() *Config {
	return &Config{
		ListenAddr:              ":8480",
		CacheTTL:                15 * time.Minute,
		CacheMaxEntries:         64,
		ProbeTimeout:            8 * time.Second,
		FetchTimeout:            90 * time.Second,
		SeriesInfoRate:          4,
		LiveExt:                 "m3u8",
		VODExt:                  "mp4",
		SeriesExt:               "mp4",
		PreferM3U:               false,
		IncludeCategories:       true,
		TreatZeroRatingAsAbsent: true,
		LogLevel:                "info",
	}
}

// Load builds the config: defaults, then the YAML file named by
// XTREAMCAT_CONFIG (if any), then XTREAMCAT_* environment overrides.
func Load() (*Config, error) {
	c := defaults()
	if path := os.Getenv("XTREAMCAT_CONFIG"); path != "" {
		if err := c.applyFile(path); err != nil {
			return nil, err
		}
	}
	c.applyEnv()
	if c.CacheTTL <= 0 {
		c.CacheTTL = 15 * time.Minute
	}
	if c.CacheMaxEntries < 1 {
		c.CacheMaxEntries = 1
	}
	if c.SeriesInfoRate <= 0 {
		c.SeriesInfoRate = 4
	}
	return c, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ListenAddr = getEnv("XTREAMCAT_LISTEN", c.ListenAddr)
	c.CacheTTL = getEnvDuration("XTREAMCAT_CACHE_TTL", c.CacheTTL)
	c.CacheMaxEntries = getEnvInt("XTREAMCAT_CACHE_MAX_ENTRIES", c.CacheMaxEntries)
	c.ProbeTimeout = getEnvDuration("XTREAMCAT_PROBE_TIMEOUT", c.ProbeTimeout)
	c.FetchTimeout = getEnvDuration("XTREAMCAT_FETCH_TIMEOUT", c.FetchTimeout)
	c.SeriesInfoRate = getEnvFloat("XTREAMCAT_SERIES_INFO_RATE", c.SeriesInfoRate)
	c.LiveExt = getEnvExt("XTREAMCAT_LIVE_EXT", c.LiveExt)
	c.VODExt = getEnvExt("XTREAMCAT_VOD_EXT", c.VODExt)
	c.SeriesExt = getEnvExt("XTREAMCAT_SERIES_EXT", c.SeriesExt)
	c.PreferM3U = getEnvBool("XTREAMCAT_PREFER_M3U", c.PreferM3U)
	c.IncludeCategories = getEnvBool("XTREAMCAT_INCLUDE_CATEGORIES", c.IncludeCategories)
	c.TreatZeroRatingAsAbsent = getEnvBool("XTREAMCAT_ZERO_RATING_ABSENT", c.TreatZeroRatingAsAbsent)
	c.LogLevel = getEnv("XTREAMCAT_LOG_LEVEL", c.LogLevel)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvExt normalizes a container extension: lower-case, no leading dot.
func getEnvExt(key, defaultVal string) string {
	v := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(os.Getenv(key))), ".")
	if v == "" {
		return defaultVal
	}
	return v
}
