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

// Package enumerator is the bootstrap driver that always occupies slot
// 0: at start-up it reads the FPGA's driver-ID table off core 0 and
// loads the driver matching each nonzero ID into its own slot, giving
// the daemon's table of slots and cores their initial shape.
package enumerator

import (
	"fmt"
	"time"

	"github.com/demandperipherals/fpgahubd/daemon"
	"github.com/demandperipherals/fpgahubd/link"
)

// DriverID is the value the enumerator itself carries on core 0. Slot 0
// is always loaded explicitly, never discovered, so this value is never
// looked up by LoadEnumerated; it exists for symmetry with the other
// drivers and so a board image that does list itself in the table does
// not collide with an unregistered ID.
const DriverID = 0x01

// drivlistReg is the register holding the table of NUM_CORE 16-bit
// driver IDs, one per core.
const drivlistReg = 0x40

const enumeratorCore = 0

type state struct {
	svc   daemon.Services
	timer daemon.TimerID
}

type driver struct{}

// New returns a fresh enumerator driver instance.
func New() daemon.Driver { return driver{} }

func (driver) Initialize(s *daemon.Slot, svc daemon.Services) error {
	s.Name = "enumerator"
	s.Description = "the table of driver IDs for this FPGA image"
	s.Help = "get enumerator drivlist — list each core's driver ID"

	st := &state{svc: svc, timer: daemon.TimerID(-1)}
	s.State = st

	s.NumResource = 1
	s.Resources[0] = daemon.Resource{
		Name:   "drivlist",
		Help:   "space-separated hex driver ID per core",
		Access: daemon.Readable,
		Fn:     st.drivlist,
	}

	d, ok := svc.(*daemon.Daemon)
	if !ok {
		return fmt.Errorf("enumerator: requires a concrete daemon to load discovered drivers")
	}
	if err := d.BindCore(s, enumeratorCore, st.onPacket); err != nil {
		return err
	}
	return st.requestTable()
}

// requestTable issues the driver-ID table read once and arms the ack
// watchdog, exactly as every other write/read exchange in this daemon
// does. No reply within the timeout is logged and not retried; a table
// response that arrives after the timeout is still processed.
func (st *state) requestTable() error {
	if err := st.svc.SendPacket(enumeratorCore, daemon.Packet{
		Cmd:   link.CmdOpRead,
		Reg:   drivlistReg,
		Count: byte(2 * daemon.NumCore),
	}); err != nil {
		return err
	}
	id, err := st.svc.AddTimer(daemon.AckTimeoutMillis*time.Millisecond, 0, st.onTimeout)
	if err == nil {
		st.timer = id
	}
	return nil
}

// onPacket looks for the driver-ID table response and, for every
// nonzero ID on a core other than its own, loads the matching driver.
// A core whose ID has no registered driver is logged and left unowned
// rather than aborting the rest of the table.
func (st *state) onPacket(d *daemon.Daemon, _ *daemon.Slot, pkt daemon.Packet) {
	if pkt.AutoSend() {
		return
	}
	if pkt.Reg != drivlistReg || int(pkt.Count) != 2*daemon.NumCore || len(pkt.Data) < 2*daemon.NumCore {
		return
	}
	if st.timer != daemon.TimerID(-1) {
		st.svc.DelTimer(st.timer)
		st.timer = daemon.TimerID(-1)
	}

	for core := 0; core < daemon.NumCore; core++ {
		if core == enumeratorCore {
			continue
		}
		driverID := int(pkt.Data[2*core])<<8 | int(pkt.Data[2*core+1])
		if driverID == 0 {
			continue
		}
		if err := d.LoadEnumerated(core, driverID); err != nil {
			st.svc.Log(daemon.LogWarn, "enumerator: could not load driver", "core", core, "driver_id", driverID, "err", err)
		}
	}
}

// onTimeout fires if the FPGA does not answer the driver-ID table read
// within the watchdog window; it only logs, and until a response arrives
// slot 0 stays the daemon's only populated slot.
func (st *state) onTimeout(time.Time) {
	st.timer = daemon.TimerID(-1)
	st.svc.Log(daemon.LogWarn, "enumerator: no response to driver-ID table read")
}

func (st *state) drivlist(d *daemon.Daemon, _ *daemon.Slot, _ *daemon.Resource, op daemon.Op, _ int, _ string, w daemon.ResponseWriter) error {
	if op != daemon.OpGet {
		return fmt.Errorf("enumerator: drivlist is read-only")
	}
	for core := 0; core < daemon.NumCore; core++ {
		sep := " "
		if core == daemon.NumCore-1 {
			sep = "\n"
		}
		if _, err := w.WriteString(fmt.Sprintf("%04x%s", d.Cores[core].DriverID, sep)); err != nil {
			return err
		}
	}
	return nil
}
