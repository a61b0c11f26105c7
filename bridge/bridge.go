package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/toxcall/call"
	"github.com/opd-ai/toxcall/video"
)

// signalQueueDepth bounds signaling events waiting for the signaling goroutine.
const signalQueueDepth = 64

// Controller receives signaling events. *call.Controller implements it.
type Controller interface {
	HandleIncomingCall(peerID uint32, peerName string, audioEnabled, videoEnabled bool)
	HandleCallStateChange(peerID uint32, flags call.StateFlags)
	HandleCallEnded(peerID uint32, reason string)
}

// Config holds bridge settings.
type Config struct {
	// FrameQueueDepth is the number of frames buffered per source before
	// new frames are shed.
	FrameQueueDepth int
}

// DefaultConfig returns the default bridge settings.
func DefaultConfig() Config {
	return Config{FrameQueueDepth: 4}
}

// Stats counts bridge activity.
type Stats struct {
	Signals    uint64
	Frames     uint64
	Duplicates uint64
	Shed       uint64
	Stale      uint64
	Malformed  uint64
	Panics     uint64
	// Workers is the number of frame workers currently running.
	Workers int
}

// Bridge routes events to the controller and the pipeline registry.
type Bridge struct {
	controller Controller
	registry   *video.Registry
	config     Config

	mu         sync.Mutex
	lastSeq    map[string]uint64
	endedPeers map[uint32]struct{}
	levels     map[uint32]float32
	captureErr string
	hasCapErr  bool
	stats      Stats
}

// New creates a bridge.
func New(controller Controller, registry *video.Registry, config Config) (*Bridge, error) {
	if controller == nil {
		return nil, ErrNilController
	}
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if config.FrameQueueDepth <= 0 {
		return nil, fmt.Errorf("%w: frame queue depth %d", ErrInvalidConfig, config.FrameQueueDepth)
	}
	return &Bridge{
		controller: controller,
		registry:   registry,
		config:     config,
		lastSeq:    make(map[string]uint64),
		endedPeers: make(map[uint32]struct{}),
		levels:     make(map[uint32]float32),
	}, nil
}

// Dispatch deduplicates env and applies its event synchronously.
func (b *Bridge) Dispatch(env Envelope) {
	if !b.accept(env) {
		return
	}
	b.apply(env.Event)
}

// accept records env's sequence and reports whether it is new.
func (b *Bridge) accept(env Envelope) bool {
	if env.Event == nil {
		return false
	}
	if env.Seq == 0 {
		return true
	}
	key := env.streamKey()

	b.mu.Lock()
	defer b.mu.Unlock()
	if last, ok := b.lastSeq[key]; ok && env.Seq <= last {
		b.stats.Duplicates++
		logrus.WithFields(logrus.Fields{
			"function": "accept",
			"stream":   key,
			"seq":      env.Seq,
			"last_seq": last,
		}).Debug("Dropping duplicate event")
		return false
	}
	b.lastSeq[key] = env.Seq
	return true
}

// apply dispatches one event. Every variant has its own arm.
func (b *Bridge) apply(ev Event) {
	switch ev := ev.(type) {
	case IncomingCall:
		b.countSignal()
		b.markPeer(ev.PeerID, false)
		b.controller.HandleIncomingCall(ev.PeerID, ev.PeerName, ev.AudioEnabled, ev.VideoEnabled)
	case CallStateChange:
		b.countSignal()
		b.controller.HandleCallStateChange(ev.PeerID, ev.Flags)
		if ev.Flags.IsActive() {
			b.markPeer(ev.PeerID, false)
		} else {
			b.endPeer(ev.PeerID)
		}
	case CallEnded:
		b.countSignal()
		b.controller.HandleCallEnded(ev.PeerID, ev.Reason)
		b.endPeer(ev.PeerID)
	case AudioLevel:
		b.setLevel(ev.PeerID, ev.Level)
	case VideoFrame:
		b.renderFrame(ev.Frame)
	case VideoCaptureError:
		b.setCaptureError(ev.Message)
	default:
		logrus.WithFields(logrus.Fields{
			"function": "apply",
			"type":     fmt.Sprintf("%T", ev),
		}).Error("Unhandled event kind")
	}
}

func (b *Bridge) countSignal() {
	b.mu.Lock()
	b.stats.Signals++
	b.mu.Unlock()
}

func (b *Bridge) markPeer(peerID uint32, ended bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ended {
		b.endedPeers[peerID] = struct{}{}
		delete(b.levels, peerID)
	} else {
		delete(b.endedPeers, peerID)
	}
}

// endPeer releases the peer's remote pipeline. Frames still in flight for
// the peer are dropped until it calls again.
func (b *Bridge) endPeer(peerID uint32) {
	b.markPeer(peerID, true)
	b.registry.Remove(video.RemoteSource(peerID))
	logrus.WithFields(logrus.Fields{
		"function": "endPeer",
		"peer_id":  peerID,
	}).Debug("Released remote video pipeline")
}

func (b *Bridge) renderFrame(frame video.Frame) {
	if !frame.Source.Local {
		b.mu.Lock()
		_, ended := b.endedPeers[frame.Source.PeerID]
		if ended {
			b.stats.Stale++
		}
		b.mu.Unlock()
		if ended {
			return
		}
	}

	res := b.registry.Get(frame.Source).Submit(frame)

	b.mu.Lock()
	b.stats.Frames++
	endedDuring := false
	if !frame.Source.Local {
		_, endedDuring = b.endedPeers[frame.Source.PeerID]
	}
	cleared := false
	if res.Rendered && frame.Source.Local && b.hasCapErr {
		b.hasCapErr = false
		b.captureErr = ""
		cleared = true
	}
	b.mu.Unlock()

	if endedDuring {
		// The peer ended while the frame was drawn; drop the pipeline Get
		// may have recreated.
		b.registry.Remove(frame.Source)
	}
	if cleared {
		logrus.WithFields(logrus.Fields{
			"function": "renderFrame",
		}).Info("Local video capture recovered")
	}
}

func (b *Bridge) setLevel(peerID uint32, level float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ended := b.endedPeers[peerID]; ended {
		b.stats.Stale++
		return
	}
	b.levels[peerID] = level
}

// AudioLevel returns the last reported audio level of peerID. Levels are
// forgotten when the peer's call ends.
func (b *Bridge) AudioLevel(peerID uint32) (float32, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	level, ok := b.levels[peerID]
	return level, ok
}

func (b *Bridge) setCaptureError(message string) {
	b.mu.Lock()
	b.captureErr = message
	b.hasCapErr = true
	b.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "setCaptureError",
		"message":  message,
	}).Warn("Local video capture failed")
}

// CaptureError returns the persistent local capture error, if any. It is
// cleared when a local frame renders again.
func (b *Bridge) CaptureError() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.captureErr, b.hasCapErr
}

// Stats returns a snapshot of the bridge counters.
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Run reads src until ctx is cancelled or src fails, routing signaling to
// one ordered goroutine and frames to one worker per source. Events already
// queued when reading stops are still applied before Run returns. Run
// returns nil on cancellation or when src reports io.EOF.
func (b *Bridge) Run(ctx context.Context, src Source) error {
	logrus.WithFields(logrus.Fields{
		"function":          "Run",
		"frame_queue_depth": b.config.FrameQueueDepth,
	}).Info("Starting event bridge")

	g, gctx := errgroup.WithContext(ctx)
	signals := make(chan Event, signalQueueDepth)

	g.Go(func() error {
		for ev := range signals {
			b.safeApply(ev)
		}
		return nil
	})

	g.Go(func() error {
		workers := make(map[video.Source]chan Event)
		defer func() {
			close(signals)
			for source := range workers {
				b.retireWorker(workers, source)
			}
		}()

		for {
			env, err := src.Next(gctx)
			if err != nil {
				if errors.Is(err, ErrMalformedEvent) {
					b.mu.Lock()
					b.stats.Malformed++
					b.mu.Unlock()
					logrus.WithFields(logrus.Fields{
						"function": "Run",
						"error":    err.Error(),
					}).Warn("Dropping malformed event")
					continue
				}
				if gctx.Err() != nil || errors.Is(err, io.EOF) {
					return nil
				}
				logrus.WithFields(logrus.Fields{
					"function": "Run",
					"error":    err.Error(),
				}).Error("Event source failed")
				return fmt.Errorf("read event: %w", err)
			}
			if !b.accept(env) {
				continue
			}

			switch ev := env.Event.(type) {
			case VideoFrame:
				b.enqueueFrame(g, workers, ev.Frame.Source, ev)
			case VideoCaptureError:
				// Ordered with local frames so a later frame clears it.
				b.worker(g, workers, video.LocalSource()) <- ev
			case CallEnded:
				signals <- ev
				b.retireWorker(workers, video.RemoteSource(ev.PeerID))
			case CallStateChange:
				signals <- ev
				if !ev.Flags.IsActive() {
					b.retireWorker(workers, video.RemoteSource(ev.PeerID))
				}
			default:
				signals <- ev
			}
		}
	})

	err := g.Wait()
	logrus.WithFields(logrus.Fields{
		"function": "Run",
	}).Info("Event bridge stopped")
	return err
}

// enqueueFrame hands ev to the source's worker, shedding it if the worker's
// queue is full.
func (b *Bridge) enqueueFrame(g *errgroup.Group, workers map[video.Source]chan Event, source video.Source, ev VideoFrame) {
	select {
	case b.worker(g, workers, source) <- ev:
	default:
		b.mu.Lock()
		b.stats.Shed++
		b.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "enqueueFrame",
			"source":   source.String(),
		}).Debug("Frame queue full, shedding frame")
	}
}

// worker returns the queue of source's worker, starting it on first use.
func (b *Bridge) worker(g *errgroup.Group, workers map[video.Source]chan Event, source video.Source) chan Event {
	if ch, ok := workers[source]; ok {
		return ch
	}
	ch := make(chan Event, b.config.FrameQueueDepth)
	workers[source] = ch
	b.mu.Lock()
	b.stats.Workers++
	b.mu.Unlock()
	g.Go(func() error {
		for ev := range ch {
			b.safeApply(ev)
		}
		return nil
	})
	logrus.WithFields(logrus.Fields{
		"function": "worker",
		"source":   source.String(),
	}).Debug("Started frame worker")
	return ch
}

// retireWorker stops source's worker once its queued frames are drained.
// A later frame for source starts a new worker.
func (b *Bridge) retireWorker(workers map[video.Source]chan Event, source video.Source) {
	ch, ok := workers[source]
	if !ok {
		return
	}
	close(ch)
	delete(workers, source)
	b.mu.Lock()
	b.stats.Workers--
	b.mu.Unlock()
	logrus.WithFields(logrus.Fields{
		"function": "retireWorker",
		"source":   source.String(),
	}).Debug("Retired frame worker")
}

// safeApply applies ev, recovering and logging a panic so one bad event
// cannot stop its worker.
func (b *Bridge) safeApply(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.mu.Lock()
			b.stats.Panics++
			b.mu.Unlock()
			logrus.WithFields(logrus.Fields{
				"function": "safeApply",
				"type":     fmt.Sprintf("%T", ev),
				"panic":    r,
			}).Error("Recovered panic while applying event")
		}
	}()
	b.apply(ev)
}
