package video

import (
	"image"
	"sync"

	"github.com/sirupsen/logrus"
)

// RenderResult reports the outcome of one Submit call.
type RenderResult struct {
	// Rendered is true when the frame was drawn to the surface.
	Rendered bool
	// Reallocated is true when the frame size differed from the previous one.
	Reallocated bool
	Width       int
	Height      int
	// Err is a validation error; the frame was dropped.
	Err error
}

// Stats are per-pipeline diagnostic counters.
type Stats struct {
	Rendered    uint64
	Dropped     uint64
	Allocations int
}

// Pipeline decodes one video stream into an RGBA render target.
type Pipeline struct {
	source  Source
	metrics *Metrics

	mu          sync.Mutex
	surface     Surface
	hasRendered bool
	rendered    uint64
	dropped     uint64
	onFrame     func(Source, *image.RGBA)
}

// NewPipeline creates a pipeline for source. metrics may be nil.
func NewPipeline(source Source, metrics *Metrics) *Pipeline {
	logrus.WithFields(logrus.Fields{
		"function": "NewPipeline",
		"source":   source.String(),
	}).Debug("Creating video frame pipeline")

	return &Pipeline{
		source:  source,
		metrics: metrics,
	}
}

// Source returns the stream this pipeline renders.
func (p *Pipeline) Source() Source { return p.source }

// OnFrame registers a callback invoked after every rendered frame with a
// copy of the surface image. The callback runs outside the pipeline lock
// and may call back into the pipeline.
func (p *Pipeline) OnFrame(fn func(Source, *image.RGBA)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFrame = fn
}

// Submit validates, uploads and draws one frame. A malformed frame is
// dropped and reported in the result; it never affects later frames.
func (p *Pipeline) Submit(frame Frame) RenderResult {
	if err := frame.Validate(); err != nil {
		p.mu.Lock()
		p.dropped++
		dropped := p.dropped
		p.mu.Unlock()
		p.metrics.frameDropped(p.source)

		logrus.WithFields(logrus.Fields{
			"function": "Pipeline.Submit",
			"source":   p.source.String(),
			"width":    frame.Width,
			"height":   frame.Height,
			"size":     len(frame.Data),
			"dropped":  dropped,
			"error":    err.Error(),
		}).Debug("Dropping invalid video frame")

		return RenderResult{Width: frame.Width, Height: frame.Height, Err: err}
	}

	y, u, v := frame.Planes()

	p.mu.Lock()
	reallocated := p.surface.ensure(frame.Width, frame.Height)
	p.surface.upload(y, u, v)
	p.surface.draw()
	p.hasRendered = true
	p.rendered++
	onFrame := p.onFrame
	var img *image.RGBA
	if onFrame != nil {
		img = copyImage(p.surface.target)
	}
	p.mu.Unlock()

	if onFrame != nil {
		onFrame(p.source, img)
	}

	if reallocated {
		p.metrics.surfaceReallocated(p.source)
		logrus.WithFields(logrus.Fields{
			"function": "Pipeline.Submit",
			"source":   p.source.String(),
			"width":    frame.Width,
			"height":   frame.Height,
		}).Info("Render surface resized")
	}
	p.metrics.frameRendered(p.source)

	return RenderResult{
		Rendered:    true,
		Reallocated: reallocated,
		Width:       frame.Width,
		Height:      frame.Height,
	}
}

// HasRendered reports whether at least one frame has been drawn. The view
// layer uses it to tell "still connecting" from "stream ended".
func (p *Pipeline) HasRendered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasRendered
}

// Image returns a copy of the last rendered image, or nil before the first
// frame.
func (p *Pipeline) Image() *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.surface.target == nil || !p.hasRendered {
		return nil
	}
	return copyImage(p.surface.target)
}

func copyImage(src *image.RGBA) *image.RGBA {
	img := image.NewRGBA(src.Rect)
	copy(img.Pix, src.Pix)
	return img
}

// Stats returns the pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Rendered:    p.rendered,
		Dropped:     p.dropped,
		Allocations: p.surface.Allocations(),
	}
}

// Size returns the current surface dimensions.
func (p *Pipeline) Size() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.surface.Size()
}

// release frees the surface backings.
func (p *Pipeline) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.surface.release()
	p.hasRendered = false
	p.onFrame = nil
}
