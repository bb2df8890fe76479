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
	"fmt"

	"github.com/demandperipherals/fpgahubd/link"
)

// Dispatch routes one CRC-verified, decoded wire packet to the core that
// owns it. CRC is already checked by link.Unmarshal before Dispatch ever
// sees the packet; Dispatch's own job is the sanity-nibble strip, the
// count/length cross-check, and the core lookup.
func (d *Daemon) Dispatch(wire link.Packet) {
	pkt, coreIdx, err := sanitize(wire)
	if err != nil {
		d.Logger.WithError(err).Warn("packet router: malformed frame discarded")
		return
	}

	if coreIdx < 0 || coreIdx >= NumCore {
		d.Logger.WithField("core", coreIdx).Warn("packet router: unknown core, frame discarded")
		return
	}
	core := &d.Cores[coreIdx]
	if core.OnPacket == nil {
		// Not fatal: unsolicited frames can legitimately arrive before
		// every driver has finished initializing.
		d.Logger.WithField("core", coreIdx).Debug("packet router: no callback registered, frame discarded")
		return
	}
	if core.Slot < 0 || core.Slot >= MaxSlot || !d.Slots[core.Slot].InUse {
		d.Logger.WithField("core", coreIdx).Warn("packet router: core owned by invalid slot, frame discarded")
		return
	}
	core.OnPacket(d, &d.Slots[core.Slot], pkt)
}

// sanitize strips the FPGA-side sanity nibble from core and cross-checks
// read responses against the count they claim. cmd is passed through
// untouched, high nibble included: a driver needs cmd's high bit intact
// to tell an auto-send frame from an ordinary response (Packet.AutoSend).
func sanitize(wire link.Packet) (Packet, int, error) {
	cmd := wire.Cmd
	core := int(wire.Core & 0x0F)

	data := wire.Data
	if cmd&link.CmdOpMask == link.CmdOpRead {
		// A read response always carries a trailing "remaining" byte
		// after the data actually returned: how many more bytes the
		// FPGA still owes for this request. requested-returned must
		// equal remaining, or the frame is bogus and gets discarded
		// rather than dispatched with truncated data.
		requested := int(wire.Count)
		returned := len(data) - 1
		if returned < 0 {
			return Packet{}, core, fmt.Errorf("%w: count=%d data=%d", ErrCountMismatch, requested, len(data))
		}
		remaining := int(data[returned])
		if remaining != requested-returned {
			return Packet{}, core, fmt.Errorf("%w: requested=%d returned=%d remaining=%d", ErrCountMismatch, requested, returned, remaining)
		}
		data = data[:returned]
	}

	return Packet{
		Cmd:   cmd,
		Core:  wire.Core & 0x0F,
		Reg:   wire.Reg,
		Count: wire.Count,
		Data:  data,
	}, core, nil
}
