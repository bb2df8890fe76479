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

// Package basys3 drives the board's switch and LED registers. A get on
// switches is asynchronous: the driver issues a link read and returns
// without a synchronous response, then formats the hardware's reply once
// it arrives.
package basys3

import (
	"fmt"

	"github.com/demandperipherals/fpgahubd/daemon"
	"github.com/demandperipherals/fpgahubd/link"
)

// DriverID is the value the enumerator reads off the FPGA's driver-ID
// table for this core.
const DriverID = 0x23

const (
	switchesReg = 0
	ledsReg     = 1
)

type state struct {
	svc  daemon.Services
	core int
}

type driver struct{}

// New returns a fresh basys3 driver instance.
func New() daemon.Driver { return driver{} }

func (driver) Initialize(s *daemon.Slot, svc daemon.Services) error {
	s.Name = "basys3"
	s.Description = "Basys3 board switches and LEDs"
	s.Help = "get basys3 switches | set basys3 leds <hex byte>"

	st := &state{svc: svc}
	s.State = st

	s.NumResource = 2
	s.Resources[0] = daemon.Resource{
		Name:   "switches",
		Help:   "slide switch positions, three hex bytes",
		Access: daemon.Readable,
		Fn:     st.switches,
		UILock: daemon.LockNone,
	}
	s.Resources[1] = daemon.Resource{
		Name:   "leds",
		Help:   "LED drive value, one hex byte",
		Access: daemon.Writable,
		Fn:     st.leds,
	}

	st.core = s.Core
	if s.Core != daemon.CoreNone {
		if d, ok := svc.(*daemon.Daemon); ok {
			return d.BindCore(s, s.Core, st.onPacket)
		}
	}
	return nil
}

// switches issues a three-byte read and locks the resource to
// sessionIdx; the response is written asynchronously by onPacket once
// the FPGA replies, so w is left untouched here.
func (st *state) switches(d *daemon.Daemon, slot *daemon.Slot, _ *daemon.Resource, op daemon.Op, sessionIdx int, _ string, _ daemon.ResponseWriter) error {
	if op != daemon.OpGet {
		return fmt.Errorf("basys3: switches is read-only")
	}
	if err := st.svc.SendPacket(st.core, daemon.Packet{
		Cmd:   link.CmdOpRead,
		Reg:   switchesReg,
		Count: 3,
	}); err != nil {
		return err
	}
	d.LockForReply(slotIndex(d, slot), 0, sessionIdx)
	return nil
}

func (st *state) leds(_ *daemon.Daemon, _ *daemon.Slot, _ *daemon.Resource, op daemon.Op, _ int, arg string, w daemon.ResponseWriter) error {
	if op != daemon.OpSet {
		return fmt.Errorf("basys3: leds is write-only")
	}
	var val uint64
	if _, err := fmt.Sscanf(arg, "%x", &val); err != nil {
		return fmt.Errorf("basys3: bad value %q: %w", arg, err)
	}
	if err := st.svc.SendPacket(st.core, daemon.Packet{
		Cmd:   link.CmdOpWrite,
		Reg:   ledsReg,
		Count: 1,
		Data:  []byte{byte(val)},
	}); err != nil {
		return err
	}
	_, _ = w.WriteString("")
	return nil
}

// onPacket answers a pending switches read; any other inbound frame is
// ignored since leds never expects a reply.
func (st *state) onPacket(d *daemon.Daemon, slot *daemon.Slot, pkt daemon.Packet) {
	if pkt.Reg != switchesReg || len(pkt.Data) < 3 {
		return
	}
	payload := []byte(fmt.Sprintf("%02x %02x%02x\n", pkt.Data[0], pkt.Data[1], pkt.Data[2]))
	d.ReplyLocked(slotIndex(d, slot), 0, payload)
}

// slotIndex recovers slot's index in d.Slots. Callbacks are only ever
// invoked with a slot pointer taken from that table, so this always
// finds a match.
func slotIndex(d *daemon.Daemon, slot *daemon.Slot) int {
	for i := range d.Slots {
		if &d.Slots[i] == slot {
			return i
		}
	}
	return daemon.SlotNone
}
