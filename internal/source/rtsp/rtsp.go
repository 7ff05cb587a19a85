// Package rtsp implements an RTSP feed source on a GStreamer pipeline and
// registers it with package source under the "rtsp" kind.
package rtsp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/orion-gallery/internal/media"
	"github.com/e7canasta/orion-gallery/internal/source"
)

func init() {
	source.Register(source.KindRTSP, func(cfg source.FeedConfig, log *slog.Logger) (source.Source, error) {
		s, err := New(cfg, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Stream publishes frames decoded from an RTSP URL into its track.
type Stream struct {
	cfg   source.FeedConfig
	track *media.FrameTrack
	log   *slog.Logger

	reconnectCfg   source.ReconnectConfig
	reconnectState source.ReconnectState

	// pipeline lifecycle; the run goroutine is the only caller of watch
	// and teardown while started
	open        func() (*pipelineElements, error)
	watch       func(ctx context.Context, elements *pipelineElements) error
	teardown    func(elements *pipelineElements) error
	stopTimeout time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started time.Time

	running     atomic.Bool
	seq         atomic.Uint64
	frames      atomic.Uint64
	bytes       atomic.Uint64
	lastFrameAt atomic.Int64
	errs        [4]atomic.Uint64 // by source.ErrorCategory
}

var _ source.Source = (*Stream)(nil)

// New validates cfg and checks GStreamer is usable.
func New(cfg source.FeedConfig, log *slog.Logger) (*Stream, error) {
	if cfg.Kind == "" {
		cfg.Kind = source.KindRTSP
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Kind != source.KindRTSP {
		return nil, fmt.Errorf("%w: rtsp source got kind %q", source.ErrInvalidConfig, cfg.Kind)
	}
	if err := checkGStreamerAvailable(); err != nil {
		return nil, fmt.Errorf("rtsp: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Stream{
		cfg:          cfg,
		track:        media.NewFrameTrack(cfg.ID),
		log:          log,
		reconnectCfg: cfg.Reconnect.WithDefaults(),
		stopTimeout:  3 * time.Second,
		teardown:     destroyPipeline,
	}
	s.open = s.openPipeline
	s.watch = s.monitor

	log.Info("rtsp: stream created",
		"url", cfg.URL,
		"resolution", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"fps", cfg.FPS,
	)

	return s, nil
}

func (s *Stream) ID() string {
	return s.cfg.ID
}

func (s *Stream) Track() *media.FrameTrack {
	return s.track
}

// Start builds the pipeline, sets it PLAYING and launches the bus monitor.
// It returns once the pipeline has been started; frames arrive
// asynchronously.
func (s *Stream) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return source.ErrAlreadyStarted
	}

	elements, err := s.open()
	if err != nil {
		return fmt.Errorf("rtsp: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = time.Now()
	s.running.Store(true)

	s.wg.Add(1)
	go s.run(runCtx, elements)

	s.log.Info("rtsp: stream started", "url", s.cfg.URL)
	return nil
}

// Stop cancels the monitor and waits for it to tear the pipeline down.
// When the wait times out the pipeline is left to the exiting monitor.
// Idempotent.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.stopTimeout):
		s.log.Warn("rtsp: stop timeout exceeded, monitor may still be running")
	}

	s.cancel = nil
	s.running.Store(false)

	s.log.Info("rtsp: stream stopped",
		"frames_captured", s.frames.Load(),
		"reconnects", s.reconnectState.Reconnects.Load(),
		"uptime", time.Since(s.started),
	)
	return nil
}

func (s *Stream) Stats() source.Stats {
	errs := make(map[string]uint64, len(s.errs))
	for _, c := range source.ErrorCategories() {
		errs[c.String()] = s.errs[c].Load()
	}

	var last time.Time
	if ns := s.lastFrameAt.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}

	return source.Stats{
		Frames:      s.frames.Load(),
		Bytes:       s.bytes.Load(),
		Reconnects:  s.reconnectState.Reconnects.Load(),
		Errors:      errs,
		Running:     s.running.Load(),
		LastFrameAt: last,
	}
}

func (s *Stream) buildPipeline() (*pipelineElements, error) {
	elements, err := createPipeline(pipelineConfig{
		URL:    s.cfg.URL,
		Width:  s.cfg.Width,
		Height: s.cfg.Height,
		FPS:    s.cfg.FPS,
	}, s.log)
	if err != nil {
		return nil, err
	}

	elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})
	return elements, nil
}

// openPipeline builds the pipeline and sets it PLAYING.
func (s *Stream) openPipeline() (*pipelineElements, error) {
	elements, err := s.buildPipeline()
	if err != nil {
		return nil, err
	}
	if err := elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		destroyPipeline(elements)
		return nil, fmt.Errorf("failed to start pipeline: %w", err)
	}
	return elements, nil
}

// run owns elements: it monitors the bus, rebuilds the pipeline with
// backoff on failure and tears the last one down on exit.
func (s *Stream) run(ctx context.Context, elements *pipelineElements) {
	defer s.wg.Done()
	defer func() {
		if err := s.teardown(elements); err != nil {
			s.log.Warn("rtsp: pipeline teardown failed", "error", err)
		}
	}()

	connect := func(ctx context.Context) error {
		if elements == nil {
			e, err := s.open()
			if err != nil {
				return err
			}
			elements = e
		}

		err := s.watch(ctx, elements)
		if err != nil {
			s.teardown(elements)
			elements = nil
		}
		return err
	}

	err := source.RunWithReconnect(ctx, connect, s.reconnectCfg, &s.reconnectState, s.log)
	if err != nil && ctx.Err() == nil {
		s.running.Store(false)
		s.log.Error("rtsp: stream stopped after reconnection failure",
			"error", err,
			"url", s.cfg.URL,
			"uptime", time.Since(s.started),
			"frames_processed", s.frames.Load(),
			"reconnects", s.reconnectState.Reconnects.Load(),
		)
	}
}

// monitor polls the bus until an error or EOS (returned) or cancellation
// (nil).
func (s *Stream) monitor(ctx context.Context, elements *pipelineElements) error {
	bus := elements.Pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			s.log.Info("rtsp: end of stream received", "frames_processed", s.frames.Load())
			return fmt.Errorf("end of stream")

		case gst.MessageError:
			gerr := msg.ParseError()
			category := source.ClassifyError(gerr.Error(), gerr.DebugString())
			s.errs[category].Add(1)

			s.log.Error("rtsp: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"category", category.String(),
				"url", s.cfg.URL,
				"reconnects", s.reconnectState.Reconnects.Load(),
			)
			return fmt.Errorf("pipeline error [%s]: %s", category, gerr.Error())

		case gst.MessageStateChanged:
			if msg.Source() != elements.Pipeline.GetName() {
				continue
			}
			_, newState := msg.ParseStateChanged()
			if newState == gst.StatePlaying {
				s.reconnectState.Reset()
				s.log.Info("rtsp: pipeline playing")
			}
		}
	}
}

// onNewSample copies the decoded RGB buffer and publishes it into the track.
// A bad sample is skipped rather than ending the stream.
func (s *Stream) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		s.log.Warn("rtsp: failed to pull sample, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		s.log.Warn("rtsp: sample without buffer, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}

	// GStreamer reuses the buffer
	pixels := make([]byte, len(data))
	copy(pixels, data)
	buffer.Unmap()

	now := time.Now()
	s.track.Publish(media.Frame{
		Seq:          s.seq.Add(1),
		Timestamp:    now,
		Width:        s.cfg.Width,
		Height:       s.cfg.Height,
		Data:         pixels,
		SourceStream: s.cfg.ID,
		TraceID:      uuid.New().String(),
	})

	s.frames.Add(1)
	s.bytes.Add(uint64(len(pixels)))
	s.lastFrameAt.Store(now.UnixNano())

	return gst.FlowOK
}
