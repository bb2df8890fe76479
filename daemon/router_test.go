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
	"io"
	"testing"

	"github.com/demandperipherals/fpgahubd/link"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(Config{Log: log, Registry: NewRegistry()})
}

func TestDispatchRoutesToOwningCore(t *testing.T) {
	d := newTestDaemon(t)
	d.Slots[0].InUse = true
	d.Cores[3].Slot = 0

	var got Packet
	calls := 0
	d.Cores[3].OnPacket = func(_ *Daemon, slot *Slot, pkt Packet) {
		calls++
		got = pkt
		require.Same(t, &d.Slots[0], slot)
	}

	wire := link.Packet{Cmd: 0xF8, Core: 0xE3, Reg: 5, Count: 2, Data: []byte{0xAA, 0xBB}}
	d.Dispatch(wire)

	require.Equal(t, 1, calls)
	require.Equal(t, byte(0xF8), got.Cmd) // only core's sanity nibble is stripped, cmd passes through
	require.Equal(t, byte(0x03), got.Core)
	require.Equal(t, []byte{0xAA, 0xBB}, got.Data)
}

func TestDispatchNoCallbackIsNotFatal(t *testing.T) {
	d := newTestDaemon(t)
	// core 3 has no OnPacket registered at all; this must be a quiet discard.
	wire := link.Packet{Cmd: 0xF0, Core: 0xE3, Reg: 0, Count: 0}
	d.Dispatch(wire)
}

func TestDispatchCountMismatchDiscarded(t *testing.T) {
	d := newTestDaemon(t)
	d.Slots[0].InUse = true
	d.Cores[1].Slot = 0
	calls := 0
	d.Cores[1].OnPacket = func(*Daemon, *Slot, Packet) { calls++ }

	// Read op, count=3 requested, but the trailing remaining byte (9)
	// doesn't agree with requested-returned (3-2=1), so sanitize must
	// reject the frame before it reaches the core callback.
	wire := link.Packet{Cmd: 0x04, Core: 0xE1, Reg: 0, Count: 3, Data: []byte{1, 2, 9}}
	d.Dispatch(wire)

	require.Equal(t, 0, calls)
}

func TestDispatchShortReadResponseIsTrimmedNotRejected(t *testing.T) {
	d := newTestDaemon(t)
	d.Slots[0].InUse = true
	d.Cores[2].Slot = 0
	var got Packet
	d.Cores[2].OnPacket = func(_ *Daemon, _ *Slot, pkt Packet) { got = pkt }

	// Read op (0x4), count=4 requested, but the hardware only supplied 2
	// data bytes plus a trailing "remaining" byte per §4.3.
	wire := link.Packet{Cmd: 0xF4, Core: 0xE2, Reg: 0, Count: 4, Data: []byte{0x11, 0x22, 0x02}}
	d.Dispatch(wire)

	require.Equal(t, []byte{0x11, 0x22}, got.Data)
}
