// Package source implements feed producers: each Source owns a FrameTrack
// and publishes decoded frames into it from its own goroutine.
//
// Kinds other than "synthetic" are provided by subpackages that register a
// Builder at init time (see source/rtsp).
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/e7canasta/orion-gallery/internal/media"
)

var (
	ErrAlreadyStarted = errors.New("source: already started")
	ErrUnknownKind    = errors.New("source: unknown feed kind")
	ErrInvalidConfig  = errors.New("source: invalid feed config")
)

// Feed kinds.
const (
	KindSynthetic = "synthetic"
	KindRTSP      = "rtsp"
)

// Source is a feed producer.
//
// Implementations must guarantee:
//   - Start returns once the feed is running; frames arrive asynchronously
//   - Stop is idempotent and returns once no more frames will be published
//   - Stats is safe to call from any goroutine
type Source interface {
	// ID returns the feed identity; it matches Track().ID().
	ID() string
	// Track returns the track frames are published into.
	Track() *media.FrameTrack
	// Start launches the producer.
	Start(ctx context.Context) error
	// Stop halts the producer.
	Stop() error
	// Stats returns producer counters.
	Stats() Stats
}

// Stats contains producer counters.
type Stats struct {
	// Frames published into the track
	Frames uint64
	// Bytes of pixel data published
	Bytes uint64
	// Reconnects attempted since start
	Reconnects uint32
	// Errors by category name (network, codec, auth, unknown)
	Errors map[string]uint64
	// Running is true between a successful Start and Stop
	Running bool
	// LastFrameAt is the publish time of the most recent frame
	LastFrameAt time.Time
}

// FeedConfig describes one feed.
type FeedConfig struct {
	// ID is the feed identity (required, unique)
	ID string
	// Kind selects the producer ("synthetic", "rtsp")
	Kind string
	// URL of the stream (required for rtsp)
	URL string
	// Width and Height of produced frames
	Width  int
	Height int
	// FPS is the producer frame rate (0.1 - 60)
	FPS float64
	// MaxFramerate caps delivery to the renderer; 0 = unlimited
	MaxFramerate float64
	// MaxPixelCount caps frame size delivered to the renderer; 0 = unlimited
	MaxPixelCount int
	// Reconnect tunes the backoff of network sources; zero values use defaults
	Reconnect ReconnectConfig
}

// Wants returns the sink preferences the feed's renderer attaches with.
func (c FeedConfig) Wants() media.SinkWants {
	return media.SinkWants{
		MaxFramerate:  c.MaxFramerate,
		MaxPixelCount: c.MaxPixelCount,
	}
}

// Validate checks c fail-fast.
func (c FeedConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: feed %s: invalid resolution %dx%d", ErrInvalidConfig, c.ID, c.Width, c.Height)
	}
	if c.FPS < 0.1 || c.FPS > 60 {
		return fmt.Errorf("%w: feed %s: invalid fps %.2f (must be 0.1-60)", ErrInvalidConfig, c.ID, c.FPS)
	}
	if c.MaxFramerate < 0 || c.MaxPixelCount < 0 {
		return fmt.Errorf("%w: feed %s: negative delivery limit", ErrInvalidConfig, c.ID)
	}

	switch c.Kind {
	case KindSynthetic:
	case KindRTSP:
		if c.URL == "" {
			return fmt.Errorf("%w: feed %s: rtsp url is required", ErrInvalidConfig, c.ID)
		}
	default:
		return fmt.Errorf("%w: %q (feed %s)", ErrUnknownKind, c.Kind, c.ID)
	}
	return nil
}

// Builder constructs a Source for a validated FeedConfig.
type Builder func(cfg FeedConfig, log *slog.Logger) (Source, error)

var (
	buildersMu sync.RWMutex
	builders   = map[string]Builder{
		KindSynthetic: func(cfg FeedConfig, log *slog.Logger) (Source, error) {
			return NewSynthetic(cfg, log), nil
		},
	}
)

// Register makes a Builder available for kind. It panics on a duplicate
// registration, like database/sql drivers.
func Register(kind string, b Builder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()

	if b == nil {
		panic("source: Register builder is nil")
	}
	if _, dup := builders[kind]; dup {
		panic("source: Register called twice for kind " + kind)
	}
	builders[kind] = b
}

// Kinds returns the registered kinds, sorted.
func Kinds() []string {
	buildersMu.RLock()
	defer buildersMu.RUnlock()

	kinds := make([]string, 0, len(builders))
	for k := range builders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// New validates cfg and builds the Source for its kind. A nil log uses
// slog.Default().
func New(cfg FeedConfig, log *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	buildersMu.RLock()
	build, ok := builders[cfg.Kind]
	buildersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrUnknownKind, cfg.Kind)
	}

	src, err := build(cfg, log.With("feed", cfg.ID))
	if err != nil {
		return nil, fmt.Errorf("source: feed %s: %w", cfg.ID, err)
	}
	return src, nil
}
