package appshell

import (
	"sync"
	"time"
)

// oneShot wraps time.AfterFunc with fire-exactly-once semantics.
// Stop after expiry, double Stop, and Stop without Arm are all safe.
type oneShot struct {
	mu    sync.Mutex
	timer *time.Timer
	armed bool
}

// Arm schedules fn after d, replacing any previous schedule. fn runs on
// the timer goroutine and only if the timer was still armed at expiry.
func (o *oneShot) Arm(d time.Duration, fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.timer != nil {
		o.timer.Stop()
	}
	o.armed = true
	o.timer = time.AfterFunc(d, func() {
		o.mu.Lock()
		fire := o.armed
		o.armed = false
		o.mu.Unlock()
		if fire {
			fn()
		}
	})
}

// Stop cancels a pending fire. Idempotent.
func (o *oneShot) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.armed = false
	if o.timer != nil {
		o.timer.Stop()
	}
}

// TimeoutGuard owns the two lifecycle timers of an application: the
// launch timeout (no window produced in time) and the unload grace
// (Exiting observers get a bounded window before forced teardown).
// The timers are independent and each fires at most once per Arm.
type TimeoutGuard struct {
	launch oneShot
	unload oneShot
}

// ArmLaunch starts the launch-timeout countdown.
func (g *TimeoutGuard) ArmLaunch(d time.Duration, fn func()) {
	g.launch.Arm(d, fn)
}

// CancelLaunch stops the launch timeout. Safe to call repeatedly or
// when the timer was never armed.
func (g *TimeoutGuard) CancelLaunch() {
	g.launch.Stop()
}

// ArmUnload starts the unload-grace countdown.
func (g *TimeoutGuard) ArmUnload(d time.Duration, fn func()) {
	g.unload.Arm(d, fn)
}

// CancelUnload stops the unload-grace timer.
func (g *TimeoutGuard) CancelUnload() {
	g.unload.Stop()
}

// Dispose cancels both timers.
func (g *TimeoutGuard) Dispose() {
	g.launch.Stop()
	g.unload.Stop()
}
