// Package gallery is the public surface of the video-tile gallery core.
//
// # Overview
//
// A GalleryView owns a set of content views, one per feed. Each view
// attaches a render sink to the feed's track when inserted and detaches it
// when removed, so no frame is delivered to a renderer after its view is
// gone. The active ordering strategy decides tile order and the gallery
// maps that order onto grid cells for a Host to embed.
//
// # Basic Usage
//
//	track := gallery.NewFrameTrack("cam-1")
//
//	g, err := gallery.New(gallery.Config{Host: host})
//	if err != nil {
//	    return err
//	}
//	g.InsertView(gallery.NewView("cam-1", track, gallery.SinkWants{}))
//
//	// producer goroutine
//	track.Publish(frame)
//
//	// on shutdown
//	g.RemoveAll()
//
// # Threading
//
// GalleryView is not synchronized: drive it from one goroutine (the UI
// loop). Publish runs on producer goroutines and may be called concurrently
// with any gallery operation.
//
// # Ordering
//
// StrategyDefault orders tiles by id. StrategyPinned puts the configured
// pinned ids first, in pin order, then the rest by id.
package gallery
