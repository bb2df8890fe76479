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

package control

import (
	"io"
	"testing"

	"github.com/demandperipherals/fpgahubd/daemon"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fakeConn is a minimal sessionWriter (Write + Close) stand-in recording every
// write a session produces, so tests can assert on exact response text
// without a real socket.
type fakeConn struct {
	written [][]byte
	closed  bool
}

func (f *fakeConn) Write(b []byte) (int, error) {
	f.written = append(f.written, append([]byte(nil), b...))
	return len(b), nil
}
func (f *fakeConn) Close() error { f.closed = true; return nil }

func newTestDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	d := daemon.New(daemon.Config{Log: logger, Registry: daemon.NewRegistry()})
	return d
}

func newTestSession(t *testing.T, d *daemon.Daemon, prefix string) (*Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	sess, err := d.AcceptSession(conn, "test-peer")
	require.NoError(t, err)
	return &Session{d: d, daemonSess: sess, prefix: prefix}, conn
}

func joinWritten(conn *fakeConn) string {
	var out []byte
	for _, b := range conn.written {
		out = append(out, b...)
	}
	return string(out)
}

func TestSetInvokesResourceAndPrompts(t *testing.T) {
	d := newTestDaemon(t)
	d.Slots[0].InUse = true
	d.Slots[0].Name = "out4"
	d.Slots[0].NumResource = 1
	var gotArg string
	d.Slots[0].Resources[0] = daemon.Resource{
		Name:   "outval",
		Access: daemon.Writable,
		Fn: func(_ *daemon.Daemon, _ *daemon.Slot, _ *daemon.Resource, op daemon.Op, _ int, arg string, _ daemon.ResponseWriter) error {
			require.Equal(t, daemon.OpSet, op)
			gotArg = arg
			return nil
		},
	}

	s, conn := newTestSession(t, d, "pc")
	s.process("pcset out4 outval f")

	require.Equal(t, "f", gotArg)
	require.Equal(t, "\\", joinWritten(conn))
}

func TestGetReturnsResponseThenPrompt(t *testing.T) {
	d := newTestDaemon(t)
	d.Slots[1].InUse = true
	d.Slots[1].Name = "status"
	d.Slots[1].NumResource = 1
	d.Slots[1].Resources[0] = daemon.Resource{
		Name:   "state",
		Access: daemon.Readable,
		Fn: func(_ *daemon.Daemon, _ *daemon.Slot, _ *daemon.Resource, _ daemon.Op, _ int, _ string, w daemon.ResponseWriter) error {
			_, _ = w.WriteString("03\n")
			return nil
		},
	}

	s, conn := newTestSession(t, d, "")
	s.process("get status state")

	require.Equal(t, "03\n\\", joinWritten(conn))
}

func TestUnknownVerbYieldsErrorLineAndPrompt(t *testing.T) {
	d := newTestDaemon(t)
	s, conn := newTestSession(t, d, "")
	s.process("frobnicate out4")

	got := joinWritten(conn)
	require.Contains(t, got, "ERROR")
	require.Contains(t, got, "frobnicate")
	require.True(t, got[len(got)-1] == '\\')
}

func TestUnknownSelectorYieldsParseErrorSessionStaysOpen(t *testing.T) {
	d := newTestDaemon(t)
	s, conn := newTestSession(t, d, "")
	s.process("get nosuchslot state")

	got := joinWritten(conn)
	require.Contains(t, got, "no such slot")
	require.True(t, s.daemonSess.InUse)
}

func TestSetSurfacesNumberedLinkBusyError(t *testing.T) {
	d := newTestDaemon(t)
	d.Slots[0].InUse = true
	d.Slots[0].NumResource = 1
	d.Slots[0].Resources[0] = daemon.Resource{
		Name:   "outval",
		Access: daemon.Writable,
		Fn: func(_ *daemon.Daemon, _ *daemon.Slot, _ *daemon.Resource, _ daemon.Op, _ int, _ string, _ daemon.ResponseWriter) error {
			return daemon.ErrLinkBusy
		},
	}

	s, conn := newTestSession(t, d, "")
	s.process("set 0 outval 1")

	require.Equal(t, ErrLinkWriteFailed+"\\", joinWritten(conn))
}

func TestCatSubscribesAndSuppressesPrompt(t *testing.T) {
	d := newTestDaemon(t)
	d.Slots[0].InUse = true
	d.Slots[0].Name = "bb4io"
	d.Slots[0].NumResource = 1
	d.Slots[0].Resources[0] = daemon.Resource{Name: "buttons", Access: daemon.Broadcastable}

	s, conn := newTestSession(t, d, "")
	s.process("cat bb4io buttons")

	require.Empty(t, conn.written)
	require.NotZero(t, d.Slots[0].Resources[0].Bcast)
	require.NotZero(t, s.daemonSess.BcastKey)
}

func TestCatOnNonBroadcastResourceErrors(t *testing.T) {
	d := newTestDaemon(t)
	d.Slots[0].InUse = true
	d.Slots[0].NumResource = 1
	d.Slots[0].Resources[0] = daemon.Resource{Name: "outval", Access: daemon.Writable}

	s, conn := newTestSession(t, d, "")
	s.process("cat 0 outval")

	got := joinWritten(conn)
	require.Contains(t, got, "does not support cat")
	require.True(t, got[len(got)-1] == '\\')
}

func TestListWithoutArgumentEnumeratesOccupiedSlots(t *testing.T) {
	d := newTestDaemon(t)
	d.Slots[0].InUse = true
	d.Slots[0].Name = "out4"
	d.Slots[3].InUse = true
	d.Slots[3].Name = "bb4io"

	s, conn := newTestSession(t, d, "")
	s.process("list")

	got := joinWritten(conn)
	require.Contains(t, got, "0 out4\n")
	require.Contains(t, got, "3 bb4io\n")
}

func TestListWithArgumentEmitsHelpText(t *testing.T) {
	d := newTestDaemon(t)
	d.Slots[0].InUse = true
	d.Slots[0].Name = "out4"
	d.Slots[0].Help = "four output bits"

	s, conn := newTestSession(t, d, "")
	s.process("list out4")

	require.Contains(t, joinWritten(conn), "four output bits")
}

func TestLoadSODispatchesToDaemonAndReportsSlot(t *testing.T) {
	d := newTestDaemon(t)
	d.RegisterDriver("out4.so", -1, func() daemon.Driver { return stubDriver{} })

	s, conn := newTestSession(t, d, "")
	s.process("loadso out4.so")

	require.Equal(t, "0\n\\", joinWritten(conn))
}

type stubDriver struct{}

func (stubDriver) Initialize(*daemon.Slot, daemon.Services) error { return nil }
