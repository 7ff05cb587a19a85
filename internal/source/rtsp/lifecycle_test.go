package rtsp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/e7canasta/orion-gallery/internal/media"
	"github.com/e7canasta/orion-gallery/internal/source"
)

// fakePipeline stands in for GStreamer: it hands out empty elements and
// records teardowns.
type fakePipeline struct {
	mu       sync.Mutex
	opened   []*pipelineElements
	torndown []*pipelineElements
}

func (p *fakePipeline) open() (*pipelineElements, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := &pipelineElements{}
	p.opened = append(p.opened, e)
	return e, nil
}

func (p *fakePipeline) teardown(e *pipelineElements) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.torndown = append(p.torndown, e)
	return nil
}

func (p *fakePipeline) counts() (opened, torndown int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.opened), len(p.torndown)
}

func newFakeStream(p *fakePipeline, watch func(context.Context, *pipelineElements) error) *Stream {
	s := &Stream{
		cfg:          source.FeedConfig{ID: "cam", Kind: source.KindRTSP, URL: "rtsp://cam", Width: 32, Height: 16, FPS: 5},
		track:        media.NewFrameTrack("cam"),
		log:          discard,
		reconnectCfg: source.DefaultReconnectConfig(),
		stopTimeout:  20 * time.Millisecond,
	}
	s.open = p.open
	s.watch = watch
	s.teardown = p.teardown
	return s
}

// TestStopTearsDownOnce verifies the monitor owns the pipeline and tears it
// down before Stop returns.
func TestStopTearsDownOnce(t *testing.T) {
	p := &fakePipeline{}
	s := newFakeStream(p, func(ctx context.Context, _ *pipelineElements) error {
		<-ctx.Done()
		return nil
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := s.Start(context.Background()); err != source.ErrAlreadyStarted {
		t.Errorf("second Start() error=%v, expected ErrAlreadyStarted", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop() failed: %v", err)
	}

	if opened, torndown := p.counts(); opened != 1 || torndown != 1 {
		t.Errorf("opened=%d torndown=%d, expected 1 and 1", opened, torndown)
	}
	if p.torndown[0] != p.opened[0] {
		t.Error("torn down a pipeline that was not opened")
	}
	if s.Stats().Running {
		t.Error("stream reports running after Stop")
	}
}

// TestStopTimeoutLeavesPipelineToMonitor verifies Stop does not touch the
// pipeline when the monitor outlives the wait; the monitor tears it down
// when it exits.
func TestStopTimeoutLeavesPipelineToMonitor(t *testing.T) {
	p := &fakePipeline{}
	release := make(chan struct{})
	s := newFakeStream(p, func(context.Context, *pipelineElements) error {
		<-release
		return nil
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if _, torndown := p.counts(); torndown != 0 {
		t.Fatalf("Stop() tore down %d pipelines while the monitor was running", torndown)
	}

	close(release)
	s.wg.Wait()

	if opened, torndown := p.counts(); opened != 1 || torndown != 1 {
		t.Errorf("opened=%d torndown=%d, expected 1 and 1", opened, torndown)
	}
}

// TestMonitorFailureReopens verifies a failed pipeline is torn down and a
// new one opened by the reconnect loop.
func TestMonitorFailureReopens(t *testing.T) {
	p := &fakePipeline{}
	var calls int
	s := newFakeStream(p, func(ctx context.Context, _ *pipelineElements) error {
		calls++
		if calls == 1 {
			return context.DeadlineExceeded
		}
		<-ctx.Done()
		return nil
	})
	s.reconnectCfg = source.ReconnectConfig{MaxRetries: 3, RetryDelay: time.Millisecond, MaxRetryDelay: time.Millisecond}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if opened, _ := p.counts(); opened == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("pipeline not reopened after monitor failure")
		}
		time.Sleep(time.Millisecond)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if opened, torndown := p.counts(); opened != 2 || torndown != 2 {
		t.Errorf("opened=%d torndown=%d, expected 2 and 2", opened, torndown)
	}
}
