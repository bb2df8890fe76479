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

// Package out4 drives a four-bit output register: a set writes one byte
// to hardware and arms a watchdog for the ack; the ack cancels it.
package out4

import (
	"fmt"
	"strconv"
	"time"

	"github.com/demandperipherals/fpgahubd/daemon"
	"github.com/demandperipherals/fpgahubd/link"
)

// DriverID is the value the enumerator reads off the FPGA's driver-ID
// table for this core.
const DriverID = 0x21

const outValReg = 0

// state is the driver's private per-slot bookkeeping, installed on
// Slot.State by Initialize.
type state struct {
	svc     daemon.Services
	core    int
	timer   daemon.TimerID
	pending bool
}

// driver implements daemon.Driver.
type driver struct{}

// New returns a fresh out4 driver instance. Registered under both its
// file-name alias and DriverID so it can be reached via loadso, an
// explicit overload, or the enumerator.
func New() daemon.Driver { return driver{} }

func (driver) Initialize(s *daemon.Slot, svc daemon.Services) error {
	s.Name = "out4"
	s.Description = "four-bit output register"
	s.Help = "set out4 outval <hex nibble> — drive the four output bits"

	st := &state{svc: svc, timer: daemon.TimerID(-1)}
	s.State = st

	s.NumResource = 1
	s.Resources[0] = daemon.Resource{
		Name:   "outval",
		Help:   "current output value, 0-F",
		Access: daemon.Writable,
		Fn:     st.getSet,
	}

	st.core = s.Core
	if s.Core != daemon.CoreNone {
		if d, ok := svc.(*daemon.Daemon); ok {
			return d.BindCore(s, s.Core, st.onPacket)
		}
	}
	return nil
}

func (st *state) getSet(_ *daemon.Daemon, _ *daemon.Slot, _ *daemon.Resource, op daemon.Op, sessionIdx int, arg string, w daemon.ResponseWriter) error {
	if op != daemon.OpSet {
		return fmt.Errorf("out4: resource is not readable")
	}
	val, err := strconv.ParseUint(arg, 16, 8)
	if err != nil {
		return fmt.Errorf("out4: bad value %q: %w", arg, err)
	}

	err = st.svc.SendPacket(st.core, daemon.Packet{
		Cmd:   link.CmdOpWrite,
		Reg:   outValReg,
		Count: 1,
		Data:  []byte{byte(val)},
	})
	if err != nil {
		return err
	}

	st.pending = true
	id, terr := st.svc.AddTimer(daemon.AckTimeoutMillis*time.Millisecond, 0, st.onAckTimeout)
	if terr == nil {
		st.timer = id
	}
	_ = sessionIdx
	_, _ = w.WriteString("")
	return nil
}

// onPacket is the core's packet callback: any inbound frame while a
// write is pending is treated as its ack.
func (st *state) onPacket(_ *daemon.Daemon, _ *daemon.Slot, _ daemon.Packet) {
	if !st.pending {
		return
	}
	st.pending = false
	st.svc.DelTimer(st.timer)
	st.timer = daemon.TimerID(-1)
}

func (st *state) onAckTimeout(time.Time) {
	if !st.pending {
		return
	}
	st.pending = false
	st.svc.Log(daemon.LogWarn, "out4: no ack received", "reg", outValReg)
}
