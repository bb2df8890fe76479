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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC16KnownVector(t *testing.T) {
	// "123456789" -> 0x31C3 is the standard CRC-16/XMODEM test vector.
	got := CRC16(0, []byte("123456789"))
	require.Equal(t, uint16(0x31C3), got)
}

func TestCRC16EmptyIsZero(t *testing.T) {
	require.Equal(t, uint16(0), CRC16(0, nil))
}

func TestCRC16Incremental(t *testing.T) {
	data := []byte{0x08, 0x03, 0x10, 0x02, 0xAA, 0xBB}
	whole := CRC16(0, data)

	split := CRC16(0, data[:3])
	split = CRC16(split, data[3:])

	require.Equal(t, whole, split)
}

func TestCRC16DetectsSingleBitFlip(t *testing.T) {
	data := []byte{0x08, 0x03, 0x10, 0x02, 0xAA, 0xBB}
	good := CRC16(0, data)

	flipped := append([]byte(nil), data...)
	flipped[2] ^= 0x01
	require.NotEqual(t, good, CRC16(0, flipped))
}
