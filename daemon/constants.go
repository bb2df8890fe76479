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

// Package daemon wires the reactor, link layer, and control-plane
// together into the fixed-size tables (slots, cores, resources, sessions)
// that the whole process operates on. Every cross-reference between
// tables is a small integer index into a sibling table, never a pointer;
// "unused" is a sentinel value, never nil.
package daemon

// Pool capacities. These bound every fixed-size table the daemon owns.
const (
	// MaxSlot is the number of driver-instance slots.
	MaxSlot = 16
	// NumCore is the number of FPGA-side addressable cores, independent
	// of slot numbering (core.h: NUM_CORE).
	NumCore = 16
	// MaxResourcesPerSlot bounds each driver's named resource array.
	MaxResourcesPerSlot = 16
	// MaxSessions bounds the number of simultaneous TCP clients.
	MaxSessions = 32
	// MaxTimers and MaxHandles size the reactor pools this daemon builds.
	MaxTimers  = 64
	MaxHandles = MaxSessions + 2 // + listener + serial port
)

// Sentinel indices. A table slot holding one of these means "unused" or
// "no reference", matching the source material's null-pointer idiom
// without using pointers.
const (
	SlotNone    = -1
	CoreNone    = -1
	SessionNone = -1
	LockNone    = SessionNone
)

// AckTimeoutMillis is the nominal watchdog window, in milliseconds, a driver arms after writing
// to hardware and expecting an acknowledgement frame.
const AckTimeoutMillis = 100

// MaxCommandLine bounds one control-plane command line, including its
// trailing newline.
const MaxCommandLine = 80
