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

package link

import (
	"errors"
	"fmt"
)

// ErrDataTooLarge is returned when a Packet's Data exceeds MaxDataLen.
var ErrDataTooLarge = errors.New("link: packet data exceeds maximum length")

// Packet is the FPGA register-access command carried inside a frame:
// cmd|core|reg|count followed by up to MaxDataLen bytes of data.
type Packet struct {
	Data  []byte
	Cmd   byte
	Core  byte
	Reg   byte
	Count byte
}

// Op returns the operation encoded in Cmd's bits 3:2.
func (p Packet) Op() byte {
	return p.Cmd & CmdOpMask
}

// AutoInc reports whether Cmd requests auto-increment addressing.
func (p Packet) AutoInc() bool {
	return p.Cmd&CmdIncMask == CmdAutoInc
}

// Marshal renders p as the unescaped header+data+crc byte sequence that
// Encode then byte-stuffs. It does not include the End delimiters.
func (p Packet) Marshal() ([]byte, error) {
	if len(p.Data) > MaxDataLen {
		return nil, fmt.Errorf("%w: %d", ErrDataTooLarge, len(p.Data))
	}
	buf := make([]byte, HeaderLen+len(p.Data)+CRCLen)
	buf[0] = p.Cmd
	buf[1] = p.Core
	buf[2] = p.Reg
	buf[3] = p.Count
	copy(buf[HeaderLen:], p.Data)
	crc := CRC16(0, buf[:HeaderLen+len(p.Data)])
	buf[len(buf)-2] = byte(crc >> 8)
	buf[len(buf)-1] = byte(crc)
	return buf, nil
}

// ErrShortPacket is returned when an unmarshalled frame is too small to
// hold a header and a CRC.
var ErrShortPacket = errors.New("link: frame shorter than header+crc")

// ErrBadCRC is returned when the trailing CRC does not match the computed
// checksum over the header and data.
var ErrBadCRC = errors.New("link: crc mismatch")

// Unmarshal parses a raw, unescaped frame body (as produced by Decoder)
// into a Packet, verifying its trailing CRC.
func Unmarshal(raw []byte) (Packet, error) {
	if len(raw) < HeaderLen+CRCLen {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(raw))
	}
	body := raw[:len(raw)-CRCLen]
	want := CRC16(0, body)
	got := uint16(raw[len(raw)-2])<<8 | uint16(raw[len(raw)-1])
	if want != got {
		return Packet{}, fmt.Errorf("%w: want %#04x got %#04x", ErrBadCRC, want, got)
	}
	data := append([]byte(nil), raw[HeaderLen:len(raw)-CRCLen]...)
	return Packet{
		Cmd:   raw[0],
		Core:  raw[1],
		Reg:   raw[2],
		Count: raw[3],
		Data:  data,
	}, nil
}
