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

// state is the Decoder's receive state, kept explicit rather than folded
// into control flow so the state table in the protocol design matches the
// code one for one.
type state int

const (
	// stateSkipZeroes is entered only at construction. It absorbs leading
	// 0x00 padding a UART can emit at line-up before ever handing the
	// decoder a real frame, and is never re-entered once left.
	stateSkipZeroes state = iota
	stateInPacket
	stateInEscape
)

// ErrFrameTooLong is returned by Feed when an in-progress frame exceeds
// the largest packet the wire format allows.
var ErrFrameTooLong = errors.New("link: frame exceeds maximum packet length")

// ErrStrayEscape is returned when Esc is followed by a byte other than
// EscEnd or EscEsc. The decoder treats this as a protocol violation: the
// partial frame is discarded and the decoder resumes accumulating the
// next frame without re-entering the leading-zero skip.
var ErrStrayEscape = errors.New("link: escape not followed by a stuffed byte")

// Decoder unstuffs bytes arriving from the serial link into complete,
// CRC-verified Packets. It holds no references to the transport; feed it
// bytes as they arrive and drain completed packets after each call.
type Decoder struct {
	buf   []byte
	state state
}

// NewDecoder returns a Decoder ready to receive the first frame.
func NewDecoder() *Decoder {
	return &Decoder{buf: make([]byte, 0, MaxPacketLen)}
}

// Feed consumes one byte from the wire. It returns a decoded Packet when
// b completes a frame, or an error when the accumulated frame is
// malformed. Both are nil/zero when b is consumed without completing or
// failing a frame.
func (d *Decoder) Feed(b byte) (*Packet, error) {
	switch d.state {
	case stateSkipZeroes:
		switch b {
		case 0x00:
			return nil, nil
		case End:
			// Empty frame before any real data; start accumulating.
			d.state = stateInPacket
			return nil, nil
		default:
			d.state = stateInPacket
			return d.appendRaw(b)
		}

	case stateInEscape:
		d.state = stateInPacket
		switch b {
		case EscEnd:
			return d.appendRaw(End)
		case EscEsc:
			return d.appendRaw(Esc)
		default:
			d.discard()
			return nil, fmt.Errorf("%w: got %#02x", ErrStrayEscape, b)
		}

	default: // stateInPacket
		switch b {
		case End:
			return d.finish()
		case Esc:
			d.state = stateInEscape
			return nil, nil
		default:
			return d.appendRaw(b)
		}
	}
}

func (d *Decoder) appendRaw(b byte) (*Packet, error) {
	if len(d.buf) >= MaxPacketLen+CRCLen {
		n := len(d.buf) + 1
		d.discard()
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLong, n)
	}
	d.buf = append(d.buf, b)
	return nil, nil
}

// finish delivers the accumulated frame on a bare End, or is a no-op when
// the buffer is empty (consecutive Ends). Either way the decoder stays in
// stateInPacket, ready for the next frame.
func (d *Decoder) finish() (*Packet, error) {
	if len(d.buf) == 0 {
		return nil, nil
	}
	raw := d.buf
	d.discard()
	pkt, err := Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	return &pkt, nil
}

// discard clears the buffer without touching state, so callers stay in
// stateInPacket rather than re-entering the leading-zero skip.
func (d *Decoder) discard() {
	d.buf = d.buf[:0]
}
