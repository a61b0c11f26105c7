package video

import (
	"image"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry holds one Pipeline per stream source.
type Registry struct {
	metrics *Metrics

	mu        sync.RWMutex
	pipelines map[Source]*Pipeline
	onFrame   func(Source, *image.RGBA)
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(metrics *Metrics) *Registry {
	return &Registry{
		metrics:   metrics,
		pipelines: make(map[Source]*Pipeline),
	}
}

// OnFrame sets the frame callback installed on every pipeline created
// after the call.
func (r *Registry) OnFrame(fn func(Source, *image.RGBA)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFrame = fn
}

// Get returns the pipeline for source, creating it on first use.
func (r *Registry) Get(source Source) *Pipeline {
	r.mu.RLock()
	p, ok := r.pipelines[source]
	r.mu.RUnlock()
	if ok {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pipelines[source]; ok {
		return p
	}
	p = NewPipeline(source, r.metrics)
	if r.onFrame != nil {
		p.OnFrame(r.onFrame)
	}
	r.pipelines[source] = p
	return p
}

// Lookup returns the pipeline for source without creating one.
func (r *Registry) Lookup(source Source) (*Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[source]
	return p, ok
}

// Remove releases and forgets the pipeline for source.
func (r *Registry) Remove(source Source) {
	r.mu.Lock()
	p, ok := r.pipelines[source]
	delete(r.pipelines, source)
	r.mu.Unlock()
	if !ok {
		return
	}

	p.release()
	r.metrics.forget(source)

	logrus.WithFields(logrus.Fields{
		"function": "Registry.Remove",
		"source":   source.String(),
	}).Debug("Video pipeline released")
}

// Sources lists the sources with a pipeline, local first, then by peer.
func (r *Registry) Sources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, 0, len(r.pipelines))
	for s := range r.pipelines {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Local != out[j].Local {
			return out[i].Local
		}
		return out[i].PeerID < out[j].PeerID
	})
	return out
}
