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

package bb4io

import (
	"io"
	"testing"

	"github.com/demandperipherals/fpgahubd/daemon"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	written [][]byte
}

func (f *fakeConn) Write(b []byte) (int, error) {
	f.written = append(f.written, append([]byte(nil), b...))
	return len(b), nil
}
func (f *fakeConn) Close() error { return nil }

func newTestDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return daemon.New(daemon.Config{Log: logger, Registry: daemon.NewRegistry()})
}

func TestPacketBroadcastsToAllSubscribers(t *testing.T) {
	d := newTestDaemon(t)
	d.RegisterDriver("bb4io.so", DriverID, func() daemon.Driver { return New() })
	require.NoError(t, d.LoadEnumerated(5, DriverID))

	connA, connB := &fakeConn{}, &fakeConn{}
	sA, err := d.AcceptSession(connA, "a")
	require.NoError(t, err)
	sB, err := d.AcceptSession(connB, "b")
	require.NoError(t, err)

	d.Subscribe(0, 0, sA.Idx)
	d.Subscribe(0, 0, sB.Idx)

	d.Cores[5].OnPacket(d, &d.Slots[0], daemon.Packet{Reg: buttonsReg, Data: []byte{0x03}})

	require.Equal(t, [][]byte{[]byte("03\n")}, connA.written)
	require.Equal(t, [][]byte{[]byte("03\n")}, connB.written)
}

func TestDroppingLastSubscriberClearsKeyOnNextPublish(t *testing.T) {
	d := newTestDaemon(t)
	d.RegisterDriver("bb4io.so", DriverID, func() daemon.Driver { return New() })
	require.NoError(t, d.LoadEnumerated(5, DriverID))

	conn := &fakeConn{}
	s, err := d.AcceptSession(conn, "a")
	require.NoError(t, err)
	d.Subscribe(0, 0, s.Idx)

	d.Cores[5].OnPacket(d, &d.Slots[0], daemon.Packet{Reg: buttonsReg, Data: []byte{0x0A}})
	require.Equal(t, [][]byte{[]byte("0a\n")}, conn.written)

	d.CloseSession(s)

	rsc := &d.Slots[0].Resources[0]
	require.NotZero(t, rsc.Bcast)
	d.Cores[5].OnPacket(d, &d.Slots[0], daemon.Packet{Reg: buttonsReg, Data: []byte{0x0B}})
	require.Zero(t, rsc.Bcast)
}

func TestPacketForOtherRegisterIsIgnored(t *testing.T) {
	d := newTestDaemon(t)
	d.RegisterDriver("bb4io.so", DriverID, func() daemon.Driver { return New() })
	require.NoError(t, d.LoadEnumerated(5, DriverID))

	conn := &fakeConn{}
	s, err := d.AcceptSession(conn, "a")
	require.NoError(t, err)
	d.Subscribe(0, 0, s.Idx)

	d.Cores[5].OnPacket(d, &d.Slots[0], daemon.Packet{Reg: buttonsReg + 1, Data: []byte{0x09}})
	require.Empty(t, conn.written)
}
