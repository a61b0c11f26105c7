package video

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the frame pipeline counters, labelled by source.
type Metrics struct {
	rendered *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	reallocs *prometheus.CounterVec
}

// NewMetrics creates the pipeline counters and registers them on reg.
// A nil reg leaves the counters unregistered but usable.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toxcall",
			Subsystem: "video",
			Name:      "frames_rendered_total",
			Help:      "Frames converted and drawn to a render surface.",
		}, []string{"source"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toxcall",
			Subsystem: "video",
			Name:      "frames_dropped_total",
			Help:      "Frames rejected by validation.",
		}, []string{"source"}),
		reallocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toxcall",
			Subsystem: "video",
			Name:      "surface_reallocations_total",
			Help:      "Render surface reallocations caused by dimension changes.",
		}, []string{"source"}),
	}
	if reg != nil {
		reg.MustRegister(m.rendered, m.dropped, m.reallocs)
	}
	return m
}

func (m *Metrics) frameRendered(s Source) {
	if m != nil {
		m.rendered.WithLabelValues(s.String()).Inc()
	}
}

func (m *Metrics) frameDropped(s Source) {
	if m != nil {
		m.dropped.WithLabelValues(s.String()).Inc()
	}
}

func (m *Metrics) surfaceReallocated(s Source) {
	if m != nil {
		m.reallocs.WithLabelValues(s.String()).Inc()
	}
}

// forget removes the series of a source whose pipeline was released.
func (m *Metrics) forget(s Source) {
	if m != nil {
		m.rendered.DeleteLabelValues(s.String())
		m.dropped.DeleteLabelValues(s.String())
		m.reallocs.DeleteLabelValues(s.String())
	}
}
