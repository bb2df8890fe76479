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

// Package bb4io drives a four-bit input register whose only resource,
// buttons, is broadcast-only: the FPGA pushes an unsolicited frame on
// every change, and any session that has cat'ed buttons gets the new
// value formatted as two hex digits.
package bb4io

import (
	"fmt"

	"github.com/demandperipherals/fpgahubd/daemon"
)

// DriverID is the value the enumerator reads off the FPGA's driver-ID
// table for this core.
const DriverID = 0x22

const buttonsReg = 0

type state struct {
	svc  daemon.Services
	core int
}

type driver struct{}

// New returns a fresh bb4io driver instance.
func New() daemon.Driver { return driver{} }

func (driver) Initialize(s *daemon.Slot, svc daemon.Services) error {
	s.Name = "bb4io"
	s.Description = "four-bit input register"
	s.Help = "cat bb4io buttons — subscribe to button changes"

	st := &state{svc: svc}
	s.State = st

	s.NumResource = 1
	s.Resources[0] = daemon.Resource{
		Name:   "buttons",
		Help:   "current button state, 0-F",
		Access: daemon.Broadcastable,
	}

	st.core = s.Core
	if s.Core != daemon.CoreNone {
		if d, ok := svc.(*daemon.Daemon); ok {
			return d.BindCore(s, s.Core, st.onPacket)
		}
	}
	return nil
}

// onPacket treats every inbound frame as an unsolicited button-state
// update and fans it out to whoever is subscribed. A frame that isn't
// addressed to the buttons register is ignored.
func (st *state) onPacket(d *daemon.Daemon, slot *daemon.Slot, pkt daemon.Packet) {
	if pkt.Reg != buttonsReg || len(pkt.Data) == 0 {
		return
	}
	rsc := &slot.Resources[0]
	if rsc.Bcast == 0 {
		// No subscribers: skip the formatting work entirely.
		return
	}
	payload := []byte(fmt.Sprintf("%02x\n", pkt.Data[0]))
	d.BroadcastUI(&rsc.Bcast, payload)
}
