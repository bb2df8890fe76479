// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package reactor implements the daemon's single-threaded event loop: a
// timer wheel plus readiness multiplexing over a fixed set of file
// descriptors. Exactly one goroutine ever calls into the callbacks a Loop
// invokes; Run never returns until the context is cancelled, a callback
// calls Stop, or a readiness wait fails outright.
package reactor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Interest selects which readiness events a handle's callback wants.
type Interest int

const (
	Read Interest = 1 << iota
	Write
)

// TimerID and HandleID index into a Loop's fixed-size pools. NoTimer and
// NoHandle are the sentinel values returned on failure and accepted as a harmless no-op by
// Del*.
const (
	NoTimer  TimerID  = -1
	NoHandle HandleID = -1
)

type (
	// TimerID names a scheduled timer.
	TimerID int
	// HandleID names a registered file descriptor.
	HandleID int
)

// TimerFunc is invoked when a timer fires, with the time the loop observed
// the deadline as having passed (not necessarily the exact deadline).
type TimerFunc func(now time.Time)

// HandleFunc is invoked when a registered fd becomes ready for ev.
type HandleFunc func(ev Interest)

type timerSlot struct {
	fn       TimerFunc
	deadline time.Time
	period   time.Duration
	used     bool
}

type handleSlot struct {
	fn       HandleFunc
	fd       int
	interest Interest
	used     bool
}

// Loop owns a bounded timer wheel and a bounded handle table. It is not
// safe for concurrent use: every method is expected to be called from the
// single goroutine running Run, except where documented otherwise.
type Loop struct {
	timers  []timerSlot
	handles []handleSlot

	stopped bool
	stopErr error
}

// NewLoop returns a Loop with room for maxTimers timers and maxHandles
// registered file descriptors.
func NewLoop(maxTimers, maxHandles int) *Loop {
	return &Loop{
		timers:  make([]timerSlot, maxTimers),
		handles: make([]handleSlot, maxHandles),
	}
}

// errPoolExhausted is returned by AddTimer/AddHandle when the loop's fixed
// capacity is already in use.
var errPoolExhausted = fmt.Errorf("reactor: pool exhausted")

// AddTimer schedules fn to run after d. If period is nonzero the timer
// rearms itself by period each time it fires instead of being consumed.
func (l *Loop) AddTimer(d, period time.Duration, fn TimerFunc) (TimerID, error) {
	for i := range l.timers {
		if !l.timers[i].used {
			l.timers[i] = timerSlot{
				used:     true,
				deadline: time.Now().Add(d),
				period:   period,
				fn:       fn,
			}
			return TimerID(i), nil
		}
	}
	return NoTimer, errPoolExhausted
}

// DelTimer cancels a previously scheduled timer. Deleting an unknown or
// already-fired one-shot timer is a no-op.
func (l *Loop) DelTimer(id TimerID) {
	if id < 0 || int(id) >= len(l.timers) {
		return
	}
	l.timers[id].used = false
	l.timers[id].fn = nil
}

// AddHandle registers fd for the given interest. fn is called from Run
// whenever fd becomes ready.
func (l *Loop) AddHandle(fd int, interest Interest, fn HandleFunc) (HandleID, error) {
	for i := range l.handles {
		if !l.handles[i].used {
			l.handles[i] = handleSlot{used: true, fd: fd, interest: interest, fn: fn}
			return HandleID(i), nil
		}
	}
	return NoHandle, errPoolExhausted
}

// DelHandle unregisters a previously registered handle.
func (l *Loop) DelHandle(id HandleID) {
	if id < 0 || int(id) >= len(l.handles) {
		return
	}
	l.handles[id].used = false
	l.handles[id].fn = nil
}

// nextDeadline scans the timer pool for the soonest deadline, returning
// whether any timer is pending and how long to wait for it relative to
// now. The pool is a flat slice scanned linearly rather than a heap: the
// daemon's timer count is small and bounded, so a scan is cheaper than the
// bookkeeping a heap would need.
func (l *Loop) nextDeadline(now time.Time) (time.Duration, bool) {
	have := false
	var soonest time.Time
	for i := range l.timers {
		if !l.timers[i].used {
			continue
		}
		if !have || l.timers[i].deadline.Before(soonest) {
			soonest = l.timers[i].deadline
			have = true
		}
	}
	if !have {
		return 0, false
	}
	if wait := soonest.Sub(now); wait > 0 {
		return wait, true
	}
	return 0, true
}

// fireExpired runs every timer whose deadline has passed, rearming
// periodic timers by one period (catching up only once on a late tick,
// never spinning to make up missed ticks).
func (l *Loop) fireExpired(now time.Time) {
	for i := range l.timers {
		t := &l.timers[i]
		if !t.used || t.deadline.After(now) {
			continue
		}
		fn := t.fn
		if t.period > 0 {
			t.deadline = t.deadline.Add(t.period)
			if t.deadline.Before(now) {
				t.deadline = now.Add(t.period)
			}
		} else {
			t.used = false
			t.fn = nil
		}
		if fn != nil {
			fn(now)
		}
	}
}

// pollTimeoutMillis converts a wait duration to the millisecond value
// unix.Poll expects, clamping to keep the loop responsive to DelHandle and
// shutdown even when no timer is pending.
func pollTimeoutMillis(wait time.Duration, haveTimer bool) int {
	const idleWaitMillis = 1000
	if !haveTimer {
		return idleWaitMillis
	}
	ms := int(wait / time.Millisecond)
	if ms < 0 {
		ms = 0
	}
	return ms
}

// Stop ends the loop the next time Run's top-level loop checks, reporting
// err as Run's return value. Call it from inside a handle or timer
// callback to end the loop on a condition Run itself has no way to see,
// such as a transport that has declared itself unrecoverable. The first
// call wins; later calls are no-ops.
func (l *Loop) Stop(err error) {
	if l.stopped {
		return
	}
	l.stopped = true
	l.stopErr = err
}

// Run blocks, servicing timers and ready handles, until ctx is cancelled,
// a callback calls Stop, or the readiness wait itself fails. It is the
// only method that should run on a goroutine of its own; AddTimer/
// AddHandle/DelTimer/DelHandle are meant to be called from inside the
// callbacks Run invokes.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if l.stopped {
			return l.stopErr
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		now := time.Now()
		l.fireExpired(now)

		wait, haveTimer := l.nextDeadline(time.Now())
		pollFds, idx := l.buildPollSet()

		n, err := unix.Poll(pollFds, pollTimeoutMillis(wait, haveTimer))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("reactor: poll: %w", err)
		}
		if n <= 0 {
			continue
		}
		l.dispatchReady(pollFds, idx)
	}
}

func (l *Loop) buildPollSet() ([]unix.PollFd, []HandleID) {
	pollFds := make([]unix.PollFd, 0, len(l.handles))
	idx := make([]HandleID, 0, len(l.handles))
	for i := range l.handles {
		h := &l.handles[i]
		if !h.used {
			continue
		}
		var events int16
		if h.interest&Read != 0 {
			events |= unix.POLLIN
		}
		if h.interest&Write != 0 {
			events |= unix.POLLOUT
		}
		pollFds = append(pollFds, unix.PollFd{Fd: int32(h.fd), Events: events})
		idx = append(idx, HandleID(i))
	}
	return pollFds, idx
}

func (l *Loop) dispatchReady(pollFds []unix.PollFd, idx []HandleID) {
	for i, pfd := range pollFds {
		if pfd.Revents == 0 {
			continue
		}
		id := idx[i]
		if id < 0 || int(id) >= len(l.handles) || !l.handles[id].used {
			continue
		}
		var ev Interest
		if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			ev |= Read
		}
		if pfd.Revents&unix.POLLOUT != 0 {
			ev |= Write
		}
		if fn := l.handles[id].fn; fn != nil {
			fn(ev)
		}
	}
}
