package control

import (
	"context"
	"time"
)

// runLocal polls the appliance on its LAN address at a fixed interval,
// backing off while the fire is off. A kick (verification request) polls
// immediately without waiting out the interval.
func (c *Controller) runLocal(ctx context.Context, gen uint64) {
	interval := c.localInterval()
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-c.kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
		if c.stale(gen) {
			return
		}

		u, err := c.pollOnce(ctx)
		if err != nil {
			c.log.Errorw("local_poll_failed", "serial", c.identity.Serial, "err", err)
		} else if u.OnChanged {
			interval = c.localInterval()
		}
		timer.Reset(interval)
	}
}

func (c *Controller) localInterval() time.Duration {
	cfg := c.config()
	if c.rec.State().On {
		return cfg.LocalIntervalOn
	}
	return cfg.LocalIntervalOff
}

// Long-poll loop states.
const (
	statePolling = iota
	stateLongPolling
)

// runCloud drives the relay's etag long-poll protocol. A plain poll primes
// the etag baseline, then long polls are held open by the relay until the
// state changes. Issues are spaced at least LongPollSpacing apart except
// when a change came back, which re-issues immediately so updates are not
// missed. Any error demotes to a plain poll. A kick (refresh or command
// verification request) also demotes to a plain poll, so requested polls
// are answered instead of waiting out a held-open long poll.
func (c *Controller) runCloud(ctx context.Context, gen uint64) {
	etag := ""
	state := statePolling
	for {
		if ctx.Err() != nil || c.stale(gen) {
			return
		}
		// Service a kick queued while a long poll was in flight.
		select {
		case <-c.kick:
			state = statePolling
		default:
		}
		switch state {
		case statePolling:
			if _, err := c.pollOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.log.Errorw("cloud_poll_failed", "serial", c.identity.Serial, "err", err)
				if ok, _ := c.sleepSinceOrKick(ctx, time.Now()); !ok {
					return
				}
				continue
			}
			c.markAlive()
			state = stateLongPolling

		case stateLongPolling:
			issued := time.Now()
			res, err := c.cloud.LongPoll(ctx, c.identity.Serial, etag)
			if c.stale(gen) {
				// Superseded while in flight. Discard the result.
				return
			}
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return
				}
				c.log.Errorw("long_poll_failed", "serial", c.identity.Serial, "err", err)
				state = statePolling
				if ok, _ := c.sleepSinceOrKick(ctx, issued); !ok {
					return
				}
			case res.Changed:
				etag = res.Etag
				c.markAlive()
				u := c.rec.Consume(ctx, res.Snapshot)
				c.afterUpdate(ctx, u)
				// Re-issue immediately on change.
			default:
				// Relay timeout: nothing changed, keep the etag.
				etag = res.Etag
				c.markAlive()
				ok, kicked := c.sleepSinceOrKick(ctx, issued)
				if !ok {
					return
				}
				if kicked {
					state = statePolling
				}
			}
		}
	}
}

// runLiveness restarts the cloud loop when no long-poll response has arrived
// within the staleness threshold. The relay is known to wedge connections
// without closing them.
func (c *Controller) runLiveness(ctx context.Context, gen uint64) {
	cfg := c.config()
	ticker := time.NewTicker(cfg.LivenessEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if c.stale(gen) {
			return
		}
		last := time.Unix(0, c.lastAlive.Load())
		if time.Since(last) <= cfg.LivenessStale {
			continue
		}
		c.log.Errorw("long_poll_stale_restarting", "serial", c.identity.Serial, "last_response", last.UTC())
		c.mu.Lock()
		c.stopLoopsLocked()
		c.startLoopsLocked()
		c.mu.Unlock()
		return
	}
}

func (c *Controller) markAlive() {
	c.lastAlive.Store(time.Now().UnixNano())
}

// sleepSinceOrKick waits out the remainder of the long-poll spacing floor
// measured from when the previous issue started. Returns ok=false when the
// context ended, kicked=true when a requested poll cut the wait short.
func (c *Controller) sleepSinceOrKick(ctx context.Context, issued time.Time) (ok, kicked bool) {
	remaining := c.config().LongPollSpacing - time.Since(issued)
	if remaining <= 0 {
		return ctx.Err() == nil, false
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false, false
	case <-c.kick:
		return true, true
	case <-timer.C:
		return true, false
	}
}
