package rtsp

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// pipelineConfig contains configuration for GStreamer pipeline creation.
type pipelineConfig struct {
	URL    string
	Width  int
	Height int
	FPS    float64
}

// pipelineElements holds the elements needed for callbacks and teardown.
type pipelineElements struct {
	Pipeline   *gst.Pipeline
	AppSink    *app.Sink
	RTSPSrc    *gst.Element
	DecodeBin  *gst.Element
	Converter  *gst.Element
	CapsFilter *gst.Element
}

// createPipeline builds, but does not start:
//
//	rtspsrc → decodebin → videoconvert → videoscale → videorate →
//	capsfilter(RGB) → appsink
//
// rtspsrc and decodebin expose dynamic pads; they are linked from pad-added
// callbacks.
func createPipeline(cfg pipelineConfig, log *slog.Logger) (*pipelineElements, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	rtspsrc, err := gst.NewElement("rtspsrc")
	if err != nil {
		return nil, fmt.Errorf("failed to create rtspsrc: %w", err)
	}
	rtspsrc.SetProperty("location", cfg.URL)
	rtspsrc.SetProperty("protocols", 4) // TCP only

	// low frame rates need little jitter buffering
	latency := 200
	if cfg.FPS <= 2.0 {
		latency = 50
	}
	rtspsrc.SetProperty("latency", latency)
	rtspsrc.SetProperty("tcp-timeout", uint64(10000000))

	decodebin, err := gst.NewElement("decodebin")
	if err != nil {
		return nil, fmt.Errorf("failed to create decodebin: %w", err)
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}

	videorate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("failed to create videorate: %w", err)
	}
	videorate.SetProperty("drop-only", true)
	videorate.SetProperty("skip-to-first", true)

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(buildCaps(cfg.Width, cfg.Height, cfg.FPS)))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)
	appsink.SetProperty("max-buffers", 1)
	appsink.SetProperty("drop", true)

	if err := pipeline.AddMany(
		rtspsrc,
		decodebin,
		converter,
		scaler,
		videorate,
		capsfilter,
		appsink.Element,
	); err != nil {
		return nil, fmt.Errorf("failed to add pipeline elements: %w", err)
	}

	if err := gst.ElementLinkMany(
		converter,
		scaler,
		videorate,
		capsfilter,
		appsink.Element,
	); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	elements := &pipelineElements{
		Pipeline:   pipeline,
		AppSink:    appsink,
		RTSPSrc:    rtspsrc,
		DecodeBin:  decodebin,
		Converter:  converter,
		CapsFilter: capsfilter,
	}

	rtspsrc.Connect("pad-added", func(self *gst.Element, pad *gst.Pad) {
		linkDynamicPad(pad, decodebin, log)
	})
	decodebin.Connect("pad-added", func(self *gst.Element, pad *gst.Pad) {
		linkDynamicPad(pad, converter, log)
	})

	return elements, nil
}

// linkDynamicPad links a newly exposed pad to the sink pad of next. Pads that
// cannot link (audio, or an already linked sink) are ignored.
func linkDynamicPad(pad *gst.Pad, next *gst.Element, log *slog.Logger) {
	sinkPad := next.GetStaticPad("sink")
	if sinkPad == nil {
		log.Error("rtsp: missing sink pad", "element", next.GetName())
		return
	}
	if sinkPad.IsLinked() {
		return
	}

	if ret := pad.Link(sinkPad); ret != gst.PadLinkOK {
		log.Debug("rtsp: pad not linked",
			"src_pad", pad.GetName(),
			"element", next.GetName(),
			"ret", ret,
		)
		return
	}

	log.Debug("rtsp: pads linked",
		"src_pad", pad.GetName(),
		"element", next.GetName(),
	)
}

// destroyPipeline sets the pipeline to NULL, releasing its resources.
// Safe on nil.
func destroyPipeline(elements *pipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}
	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	return nil
}

// buildCaps returns the RGB caps string with framerate:
// fps >= 1 gives N/1, fps < 1 gives 1/round(1/fps).
func buildCaps(width, height int, fps float64) string {
	num, den := 1, 1
	if fps < 1.0 {
		den = int(1.0/fps + 0.5)
	} else {
		num = int(fps)
	}

	return fmt.Sprintf(
		"video/x-raw,format=RGB,width=%d,height=%d,framerate=%d/%d",
		width, height, num, den,
	)
}

// checkGStreamerAvailable verifies GStreamer can create elements.
func checkGStreamerAvailable() error {
	gst.Init(nil)

	elem, err := gst.NewElement("fakesrc")
	if err != nil {
		return fmt.Errorf("GStreamer not available or not properly installed: %w", err)
	}
	elem.SetState(gst.StateNull)

	return nil
}
