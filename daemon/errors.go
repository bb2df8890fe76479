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

import "errors"

// Link transmit errors. ErrLinkBusy means the caller should arm a timer
// and retry; ErrLinkClosed is fatal to the process.
var (
	ErrLinkBusy   = errors.New("daemon: link busy, retry later")
	ErrLinkClosed = errors.New("daemon: link closed")
)

// Packet router errors. All are logged and the frame is discarded; none
// of them reach a driver callback.
var (
	ErrBadCRC        = errors.New("daemon: packet failed crc check")
	ErrUnknownCore   = errors.New("daemon: core index out of range")
	ErrNoCallback    = errors.New("daemon: core has no packet callback")
	ErrCountMismatch = errors.New("daemon: declared count does not match frame length")
	ErrShortFrame    = errors.New("daemon: frame shorter than a header")
)

// Pool exhaustion errors, surfaced to the caller rather than silently
// corrupting a table.
var (
	ErrNoFreeSlot    = errors.New("daemon: no free slot")
	ErrNoFreeSession = errors.New("daemon: no free session")
	ErrPoolExhausted = errors.New("daemon: fixed pool exhausted")
)

// Driver host errors.
var (
	ErrDriverNotFound   = errors.New("daemon: driver not registered")
	ErrDriverInitFailed = errors.New("daemon: driver initialize failed")
	ErrSlotInUse        = errors.New("daemon: slot already in use")
)

// Resource lookup errors, surfaced to the control-plane session as a
// human-readable parse error.
var (
	ErrUnknownSlot     = errors.New("daemon: no such slot")
	ErrUnknownResource = errors.New("daemon: no such resource")
	ErrNotReadable     = errors.New("daemon: resource is not readable")
	ErrNotWritable     = errors.New("daemon: resource is not writable")
	ErrNotBroadcast    = errors.New("daemon: resource does not support cat")
)
