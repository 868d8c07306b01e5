package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"NewsRadar/internal/domain"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "NEWSRADAR_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	databaseDriverEnv = "DATABASE_DRIVER"
	refreshWorkersEnv = "REFRESH_WORKERS"
	logLevelEnv       = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Browser   BrowserConfig   `yaml:"browser"`
	Cluster   ClusterConfig   `yaml:"cluster"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// DatabaseConfig describes the articles database connection.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// SchedulerConfig defines when refresh cycles run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// RefreshConfig bounds one ingestion cycle.
type RefreshConfig struct {
	Workers          int `yaml:"workers"`
	SourceTimeoutSec int `yaml:"sourceTimeoutSec"`
	CacheSize        int `yaml:"cacheSize"`
}

// SourceTimeout is the hard per-source deadline.
func (r RefreshConfig) SourceTimeout() time.Duration {
	return time.Duration(r.SourceTimeoutSec) * time.Second
}

// BrowserConfig controls the headless fetcher used by scrape sources.
type BrowserConfig struct {
	Headless       bool `yaml:"headless"`
	PageTimeoutSec int  `yaml:"pageTimeoutSec"`
}

// PageTimeout is the hard per-page deadline for headless fetches.
func (b BrowserConfig) PageTimeout() time.Duration {
	return time.Duration(b.PageTimeoutSec) * time.Second
}

// ClusterConfig tunes the event clusterer. Epsilon is a cosine distance,
// range [0,2], not a Euclidean radius.
type ClusterConfig struct {
	Epsilon       float64             `yaml:"epsilon"`
	MinSamples    int                 `yaml:"minSamples"`
	MaxFeatures   int                 `yaml:"maxFeatures"`
	SummaryLength int                 `yaml:"summaryLength"`
	WindowSize    int                 `yaml:"windowSize"`
	Locale        string              `yaml:"locale"`
	Stopwords     map[string][]string `yaml:"stopwords"`  // locale -> extra stopwords
	Categories    map[string][]string `yaml:"categories"` // category -> keywords
}

// SourceConfig is the persisted form of one source record.
type SourceConfig struct {
	ID        string           `yaml:"id"`
	Name      string           `yaml:"name"`
	URL       string           `yaml:"url"`
	Type      string           `yaml:"type"`
	Category  string           `yaml:"category"`
	Enabled   *bool            `yaml:"enabled"` // nil means enabled
	Selectors []SelectorConfig `yaml:"selectors"`
}

// SelectorConfig is one candidate selector set for a scrape source.
type SelectorConfig struct {
	Name    string `yaml:"name"`
	Item    string `yaml:"item"`
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
	Link    string `yaml:"link"`
	Time    string `yaml:"time"`
}

// Source converts the persisted record into the domain entity.
func (s SourceConfig) Source() domain.Source {
	src := domain.Source{
		ID:       s.ID,
		Name:     s.Name,
		URL:      s.URL,
		Type:     domain.SourceType(s.Type),
		Category: s.Category,
		Enabled:  s.Enabled == nil || *s.Enabled,
	}
	if src.ID == "" {
		src.ID = s.Name
	}
	if len(s.Selectors) > 0 {
		cfg := &domain.ScrapeConfig{}
		for _, sel := range s.Selectors {
			cfg.Selectors = append(cfg.Selectors, domain.SelectorSet{
				Name:    sel.Name,
				Item:    sel.Item,
				Title:   sel.Title,
				Content: sel.Content,
				Link:    sel.Link,
				Time:    sel.Time,
			})
		}
		src.Scrape = cfg
	}
	return src
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(refreshWorkersEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Refresh.Workers = n
		}
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Refresh.Workers > 0 {
		base.Refresh.Workers = override.Refresh.Workers
	}
	if override.Refresh.SourceTimeoutSec > 0 {
		base.Refresh.SourceTimeoutSec = override.Refresh.SourceTimeoutSec
	}
	if override.Refresh.CacheSize > 0 {
		base.Refresh.CacheSize = override.Refresh.CacheSize
	}

	if override.Browser.PageTimeoutSec > 0 {
		base.Browser.PageTimeoutSec = override.Browser.PageTimeoutSec
	}
	base.Browser.Headless = base.Browser.Headless || override.Browser.Headless

	if override.Cluster.Epsilon > 0 {
		base.Cluster.Epsilon = override.Cluster.Epsilon
	}
	if override.Cluster.MinSamples > 0 {
		base.Cluster.MinSamples = override.Cluster.MinSamples
	}
	if override.Cluster.MaxFeatures > 0 {
		base.Cluster.MaxFeatures = override.Cluster.MaxFeatures
	}
	if override.Cluster.SummaryLength > 0 {
		base.Cluster.SummaryLength = override.Cluster.SummaryLength
	}
	if override.Cluster.WindowSize > 0 {
		base.Cluster.WindowSize = override.Cluster.WindowSize
	}
	if override.Cluster.Locale != "" {
		base.Cluster.Locale = override.Cluster.Locale
	}
	if len(override.Cluster.Stopwords) > 0 {
		base.Cluster.Stopwords = override.Cluster.Stopwords
	}
	if len(override.Cluster.Categories) > 0 {
		base.Cluster.Categories = override.Cluster.Categories
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database: DatabaseConfig{Driver: "sqlite", DSN: "newsradar.db"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{
			CronExpression: "",
			Timezone:       defaultTimezone,
			location:       tz,
		},
		Refresh: RefreshConfig{
			Workers:          4,
			SourceTimeoutSec: 30,
			CacheSize:        500,
		},
		Browser: BrowserConfig{Headless: false, PageTimeoutSec: 45},
		Cluster: ClusterConfig{
			Epsilon:       0.5,
			MinSamples:    2,
			MaxFeatures:   5000,
			SummaryLength: 200,
			WindowSize:    300,
			Locale:        "en",
		},
	}
}
