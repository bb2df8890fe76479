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
	"context"
	"os"
	"testing"

	"github.com/demandperipherals/fpgahubd/link"
	"github.com/stretchr/testify/require"
)

// fakeTransport is a loopback-style Transport backed by an os.Pipe, so
// AttachTransport has a real, pollable descriptor without a serial port.
type fakeTransport struct {
	r, w *os.File
	sent [][]byte
	busy bool
}

func newFakeTransport(t *testing.T) *fakeTransport {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close(); w.Close() })
	return &fakeTransport{r: r, w: w}
}

func (f *fakeTransport) Send(frame []byte) error {
	if f.busy {
		return ErrLinkBusy
	}
	f.sent = append(f.sent, append([]byte(nil), frame...))
	return nil
}

func (f *fakeTransport) Fd() int                     { return int(f.r.Fd()) }
func (f *fakeTransport) Read(b []byte) (int, error)  { return f.r.Read(b) }
func (f *fakeTransport) Close() error                { return f.r.Close() }

// deliver writes raw bytes as if the FPGA had sent them, for the reactor
// to read back out via Read.
func (f *fakeTransport) deliver(b []byte) {
	_, _ = f.w.Write(b)
}

func TestSendPacketAppliesSanityNibbles(t *testing.T) {
	d := newTestDaemon(t)
	ft := newFakeTransport(t)
	require.NoError(t, d.AttachTransport(ft))

	require.NoError(t, d.SendPacket(3, Packet{Cmd: 0x08, Reg: 1, Count: 1, Data: []byte{0x0F}}))
	require.Len(t, ft.sent, 1)

	dec := link.NewDecoder()
	var got *link.Packet
	for _, b := range ft.sent[0] {
		pkt, err := dec.Feed(b)
		require.NoError(t, err)
		if pkt != nil {
			got = pkt
		}
	}
	require.NotNil(t, got)
	require.Equal(t, byte(0xF8), got.Cmd)
	require.Equal(t, byte(0xE3), got.Core)
}

func TestSendPacketSurfacesLinkBusy(t *testing.T) {
	d := newTestDaemon(t)
	ft := newFakeTransport(t)
	ft.busy = true
	require.NoError(t, d.AttachTransport(ft))

	err := d.SendPacket(0, Packet{Cmd: 0x08})
	require.ErrorIs(t, err, ErrLinkBusy)
}

func TestSendPacketWithoutTransportIsLinkClosed(t *testing.T) {
	d := newTestDaemon(t)
	err := d.SendPacket(0, Packet{Cmd: 0x08})
	require.ErrorIs(t, err, ErrLinkClosed)
}

func TestOnSerialReadableDecodesAndDispatches(t *testing.T) {
	d := newTestDaemon(t)
	ft := newFakeTransport(t)
	require.NoError(t, d.AttachTransport(ft))

	d.Slots[0].InUse = true
	d.Cores[3].Slot = 0
	var got Packet
	d.Cores[3].OnPacket = func(_ *Daemon, _ *Slot, pkt Packet) { got = pkt }

	// A read response always carries a trailing "remaining" byte after
	// the data actually returned; one requested byte fully satisfied
	// means remaining is 0.
	wire, err := link.Encode(link.Packet{Cmd: 0xF4, Core: 0xE3, Reg: 1, Count: 1, Data: []byte{0x42, 0x00}})
	require.NoError(t, err)
	ft.deliver(wire)

	d.onSerialReadable(0)

	require.Equal(t, byte(0x42), got.Data[0])
}

func TestOnSerialReadableStopsLoopOnFatalReadError(t *testing.T) {
	d := newTestDaemon(t)
	ft := newFakeTransport(t)
	require.NoError(t, d.AttachTransport(ft))
	require.NoError(t, ft.r.Close())

	d.onSerialReadable(0)

	require.Error(t, d.Loop.Run(context.Background()))
}

func TestAcceptSessionPoolExhaustion(t *testing.T) {
	d := newTestDaemon(t)
	for i := 0; i < MaxSessions; i++ {
		_, err := d.AcceptSession(&fakeConn{}, "peer")
		require.NoError(t, err)
	}
	_, err := d.AcceptSession(&fakeConn{}, "overflow")
	require.ErrorIs(t, err, ErrNoFreeSession)
}
