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

// Package link implements the byte-stuffed framing and CRC that carry
// packets between the daemon and the FPGA over the serial link.
package link

// Stuffing bytes, SLIP-style.
const (
	End = 0xC0 // marks a frame boundary
	Esc = 0xDB // escapes an End or Esc byte that appears in the payload
)

// Escaped substitutes that follow an Esc byte on the wire.
const (
	EscEnd = 0xDC // stands in for a literal End byte
	EscEsc = 0xDD // stands in for a literal Esc byte
)

// Packet size limits. MaxPacketLen is the largest packet: the four header
// bytes plus the data, not counting the two CRC bytes that follow it on
// the wire. MaxDataLen is the largest data payload a packet can carry.
const (
	MaxPacketLen = 514
	MaxDataLen   = 510
	HeaderLen    = 4
	CRCLen       = 2
)

// Command byte layout (core.PC_CMD_*): bit 7 selects autonomous-vs-addressed
// framing, bits 3:2 select the operation, bit 1 selects auto-increment.
const (
	CmdAutoData = 0x00
	CmdAutoMask = 0x80

	CmdOpMask  = 0x0C
	CmdOpNop   = 0x00
	CmdOpRead  = 0x04
	CmdOpWrite = 0x08
	CmdOpWrRd  = 0x0C

	CmdAutoInc   = 0x02
	CmdNoAutoInc = 0x00
	CmdIncMask   = 0x02
)
