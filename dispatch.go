package appshell

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

const dispatchQueueSize = 128

// goroutineID extracts the current goroutine's id from its stack
// header ("goroutine 123 [running]:"). Used only to detect reentrant
// calls into the dispatcher from its own run loop.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Dispatcher is the single serialized execution context an Application
// mutates its state on. External signals (engine callbacks, timer
// expiry, OS session notifications) are marshaled onto it before they
// touch application state, which keeps the lifecycle single-writer.
type Dispatcher struct {
	tasks     chan func()
	quit      chan struct{}
	done      chan struct{}
	loopID    atomic.Uint64 // goroutine id of the run loop
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher creates a dispatcher and starts its run loop.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		tasks: make(chan func(), dispatchQueueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// onLoop reports whether the caller is already executing on the
// dispatch context.
func (d *Dispatcher) onLoop() bool {
	return d.loopID.Load() == goroutineID()
}

func (d *Dispatcher) run() {
	d.loopID.Store(goroutineID())
	defer close(d.done)
	for {
		select {
		case task := <-d.tasks:
			task()
		case <-d.quit:
			// Drain whatever was queued before the close.
			for {
				select {
				case task := <-d.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// Post schedules fn to run on the dispatch context and returns
// immediately. Returns ErrDispatcherClosed once the dispatcher has been
// shut down.
func (d *Dispatcher) Post(fn func()) error {
	if d.closed.Load() {
		return ErrDispatcherClosed
	}
	select {
	case d.tasks <- fn:
		return nil
	case <-d.quit:
		return ErrDispatcherClosed
	}
}

// Invoke runs fn on the dispatch context and blocks until it has run.
// Reentrant: when called from the dispatch context itself (for example
// an observer calling back into the application while an event is being
// delivered), fn runs inline instead of deadlocking on the queue.
func (d *Dispatcher) Invoke(fn func()) error {
	if d.onLoop() {
		fn()
		return nil
	}
	ran := make(chan struct{})
	err := d.Post(func() {
		defer close(ran)
		fn()
	})
	if err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-d.done:
		return ErrDispatcherClosed
	}
}

// Close stops the dispatcher after draining queued work. Idempotent
// and safe from any goroutine; a call from the dispatch context itself
// returns without waiting, the loop exits once the current task and
// the remaining queue finish.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.quit)
	})
	if d.onLoop() {
		return
	}
	<-d.done
}
