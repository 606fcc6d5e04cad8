package reactor

import "time"

// Run drives the event loop until stop returns true on some iteration's
// check, or the engine itself signals it cannot continue. Each iteration:
// compute the timeout ceiling from the timer queue, block in the engine for
// at most that long, then run expired timers and any deferred flush/reload
// (§4.1).
func (r *Reactor) Run(stop func() bool) {
	defer r.engine.Cleanup()
	for {
		if stop != nil && stop() {
			return
		}

		timeout := r.nextTimeout()
		if !r.engine.Loop(timeout) {
			return
		}

		r.timers.Run(time.Now())

		if r.pendingFlush {
			r.pendingFlush = false
			if r.dbFlush != nil {
				r.dbFlush()
			}
		}
		if r.pendingReload {
			r.pendingReload = false
			if r.configReload != nil {
				r.configReload()
			}
		}
	}
}

// nextTimeout computes max(0, nextTimer-now), the block ceiling handed to
// the engine (§4.1).
func (r *Reactor) nextTimeout() time.Duration {
	next := r.timers.Next()
	if next.IsZero() {
		return time.Second // no timers scheduled; still wake periodically
	}
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}
