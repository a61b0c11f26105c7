package call

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// durationTicker is the periodic task that re-publishes the derived call
// duration while a session is in progress.
type durationTicker struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startTickerLocked starts the ticker unless one is already running.
func (c *Controller) startTickerLocked() {
	if c.ticker != nil || c.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &durationTicker{cancel: cancel, done: make(chan struct{})}
	c.ticker = t
	go c.runTicker(ctx, t)
}

// stopTickerLocked cancels the ticker. Ticks already in flight are
// discarded by the identity check in tick.
func (c *Controller) stopTickerLocked() {
	if c.ticker == nil {
		return
	}
	c.ticker.cancel()
	c.ticker = nil
}

func (c *Controller) runTicker(ctx context.Context, t *durationTicker) {
	defer close(t.done)

	ticker := time.NewTicker(c.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(t)
		}
	}
}

func (c *Controller) tick(t *durationTicker) {
	c.mu.Lock()
	if c.ticker != t || c.session == nil || c.session.Status != StatusInProgress {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":         "tick",
		"peer_id":          snap.Session.PeerID,
		"duration_seconds": snap.Session.DurationSeconds(),
	}).Debug("Call duration tick")

	c.notify(snap)
}

// tickerRunning reports whether a duration ticker is active.
func (c *Controller) tickerRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticker != nil
}
