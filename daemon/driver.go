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

package daemon

import (
	"time"

	"github.com/demandperipherals/fpgahubd/reactor"
)

// Driver is the capability a peripheral driver implements in place of the
// raw-function-pointer ABI the original core exposes. Initialize is
// handed the slot it has been assigned and the Services surface it may
// call back into; it must register resources and a packet callback (if
// the driver owns a core) before returning.
type Driver interface {
	Initialize(s *Slot, svc Services) error
}

// Services is everything a driver consumes from the core. No method
// blocks; every operation that could block is "register a callback,
// return immediately", matching the reactor's cooperative scheduling.
type Services interface {
	// SendPacket transmits a packet addressed to core. It returns
	// ErrLinkBusy if the transport's write would block (the caller
	// should arm a timer and retry) or ErrLinkClosed if the link is
	// gone (fatal).
	SendPacket(core int, pkt Packet) error

	// AddTimer schedules fn after d, rearming every period if period is
	// nonzero. AddTimer(d, 0, fn) is a one-shot.
	AddTimer(d, period time.Duration, fn func(time.Time)) (TimerID, error)
	// DelTimer cancels a timer previously returned by AddTimer.
	DelTimer(TimerID)

	// SendUI writes payload to exactly the session at sessionIdx,
	// silently dropping it if that session is no longer active.
	SendUI(sessionIdx int, payload []byte)
	// BroadcastUI fans payload out to every session subscribed via key,
	// clearing *key to 0 if no session currently matches.
	BroadcastUI(key *uint32, payload []byte)
	// Prompt emits the single prompt byte to sessionIdx.
	Prompt(sessionIdx int)

	// AddHandle registers fd with the reactor, invoking fn when it
	// becomes ready for ev. It exists for drivers that own an I/O
	// descriptor of their own beyond the serial link and control
	// sessions (the original's add_fd); none of the built-in drivers
	// need one, but the capability is part of the surface.
	AddHandle(fd int, ev Interest, fn func(Interest)) (HandleID, error)
	// DelHandle unregisters a handle previously returned by AddHandle.
	DelHandle(id HandleID)

	// Log writes a structured diagnostic line; fields are alternating
	// key/value pairs. The calling driver's slot is not added
	// automatically.
	Log(level LogLevel, msg string, fields ...any)
}

// TimerID is the reactor's timer handle as a plain int; HandleID and
// Interest re-export the reactor's file descriptor handle and readiness
// flags, so driver code never needs to import the reactor package
// directly.
type TimerID = int
type HandleID = reactor.HandleID
type Interest = reactor.Interest

// LogLevel mirrors logrus's levels without forcing drivers to import it.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)
