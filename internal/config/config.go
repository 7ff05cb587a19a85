// Package config loads the gallery daemon configuration from a YAML file,
// GALLERY_* environment overrides and defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/e7canasta/orion-gallery/internal/gallery"
	"github.com/e7canasta/orion-gallery/internal/permute"
	"github.com/e7canasta/orion-gallery/internal/source"
)

// EnvPrefix prefixes every environment override, e.g. GALLERY_LOG_LEVEL.
const EnvPrefix = "GALLERY"

var ErrInvalid = errors.New("config: invalid configuration")

// Config is the complete daemon configuration.
type Config struct {
	Gallery GalleryConfig `mapstructure:"gallery"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	UI      UIConfig      `mapstructure:"ui"`
	Feeds   []FeedConfig  `mapstructure:"feeds"`
}

// GalleryConfig holds grid and ordering settings.
type GalleryConfig struct {
	Columns      int      `mapstructure:"columns"`       // 0 = ceil(sqrt(n))
	Strategy     string   `mapstructure:"strategy"`      // default, pinned
	Pinned       []string `mapstructure:"pinned"`        // ids leading the pinned order
	AttachPolicy string   `mapstructure:"attach_policy"` // show, reject
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Dir        string `mapstructure:"dir"`         // rotated files; empty disables file output
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // per file before rotation
	MaxBackups int    `mapstructure:"max_backups"` // rotated app.log files kept
	Console    bool   `mapstructure:"console"`     // text handler on stderr
}

// MetricsConfig holds the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables /metrics
}

// UIConfig holds terminal host settings.
type UIConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// FeedConfig describes one feed.
type FeedConfig struct {
	ID            string          `mapstructure:"id"`
	Kind          string          `mapstructure:"kind"`
	URL           string          `mapstructure:"url"`
	Width         int             `mapstructure:"width"`
	Height        int             `mapstructure:"height"`
	FPS           float64         `mapstructure:"fps"`
	MaxFramerate  float64         `mapstructure:"max_framerate"`
	MaxPixelCount int             `mapstructure:"max_pixel_count"`
	Reconnect     ReconnectConfig `mapstructure:"reconnect"`
}

// ReconnectConfig tunes network feed backoff; zero values use defaults.
type ReconnectConfig struct {
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay time.Duration `mapstructure:"max_retry_delay"`
}

// Feed defaults applied to list entries, which viper defaults cannot reach.
const (
	DefaultFeedWidth  = 640
	DefaultFeedHeight = 360
	DefaultFeedFPS    = 15.0
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("gallery.columns", 0)
	v.SetDefault("gallery.strategy", "default")
	v.SetDefault("gallery.pinned", []string{})
	v.SetDefault("gallery.attach_policy", "show")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.max_size_mb", 5)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.console", false)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("ui.refresh_interval", "250ms")

	v.SetDefault("feeds", []map[string]any{
		{"id": "cam-1", "kind": source.KindSynthetic},
		{"id": "cam-2", "kind": source.KindSynthetic},
		{"id": "cam-3", "kind": source.KindSynthetic},
		{"id": "cam-4", "kind": source.KindSynthetic},
	})
}

// Load reads path (YAML) when given, else the file named by GALLERY_CONFIG
// when set, applies environment overrides and validates the result. With
// neither, defaults and environment alone are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse: %w", err)
	}

	cfg.applyFeedDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyFeedDefaults() {
	for i := range c.Feeds {
		f := &c.Feeds[i]
		if f.Kind == "" {
			f.Kind = source.KindSynthetic
		}
		if f.Width == 0 {
			f.Width = DefaultFeedWidth
		}
		if f.Height == 0 {
			f.Height = DefaultFeedHeight
		}
		if f.FPS == 0 {
			f.FPS = DefaultFeedFPS
		}
	}
}

// Validate checks cfg fail-fast.
func Validate(cfg *Config) error {
	if _, err := cfg.Gallery.Options(); err != nil {
		return fmt.Errorf("%w: gallery: %w", ErrInvalid, err)
	}

	if _, err := cfg.Log.SlogLevel(); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 {
		return fmt.Errorf("%w: log rotation limits must be >= 0", ErrInvalid)
	}

	if cfg.UI.RefreshInterval < 0 {
		return fmt.Errorf("%w: ui.refresh_interval must be >= 0", ErrInvalid)
	}

	if len(cfg.Feeds) == 0 {
		return fmt.Errorf("%w: at least one feed is required", ErrInvalid)
	}
	seen := make(map[string]bool, len(cfg.Feeds))
	for i, f := range cfg.Feeds {
		if err := f.Source().Validate(); err != nil {
			return fmt.Errorf("%w: feeds[%d]: %w", ErrInvalid, i, err)
		}
		if seen[f.ID] {
			return fmt.Errorf("%w: feeds[%d]: duplicate id %q", ErrInvalid, i, f.ID)
		}
		seen[f.ID] = true
	}

	return nil
}

// Options maps the gallery section onto gallery.Config. Logger, metrics
// and host are left for the caller.
func (g GalleryConfig) Options() (gallery.Config, error) {
	if g.Columns < 0 {
		return gallery.Config{}, fmt.Errorf("%w (got %d)", gallery.ErrInvalidColumns, g.Columns)
	}

	kind, err := permute.ParseKind(g.Strategy)
	if err != nil {
		return gallery.Config{}, err
	}

	policy, err := gallery.ParseAttachPolicy(g.AttachPolicy)
	if err != nil {
		return gallery.Config{}, err
	}

	return gallery.Config{
		Columns:      g.Columns,
		Strategy:     kind,
		Pinned:       g.Pinned,
		AttachPolicy: policy,
	}, nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, err
	}
	return level, nil
}

// Source maps a feed entry onto source.FeedConfig.
func (f FeedConfig) Source() source.FeedConfig {
	return source.FeedConfig{
		ID:            f.ID,
		Kind:          f.Kind,
		URL:           f.URL,
		Width:         f.Width,
		Height:        f.Height,
		FPS:           f.FPS,
		MaxFramerate:  f.MaxFramerate,
		MaxPixelCount: f.MaxPixelCount,
		Reconnect: source.ReconnectConfig{
			MaxRetries:    f.Reconnect.MaxRetries,
			RetryDelay:    f.Reconnect.RetryDelay,
			MaxRetryDelay: f.Reconnect.MaxRetryDelay,
		},
	}
}
