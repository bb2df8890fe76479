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

package enumerator

import (
	"io"
	"strings"
	"testing"

	"github.com/demandperipherals/fpgahubd/daemon"
	"github.com/demandperipherals/fpgahubd/drivers/out4"
	"github.com/demandperipherals/fpgahubd/link"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	sent []link.Packet
}

func (f *fakeTransport) Send(frame []byte) error {
	dec := link.NewDecoder()
	for _, b := range frame {
		pkt, err := dec.Feed(b)
		if err != nil {
			return err
		}
		if pkt != nil {
			f.sent = append(f.sent, *pkt)
		}
	}
	return nil
}
func (f *fakeTransport) Fd() int                  { return -1 }
func (f *fakeTransport) Read([]byte) (int, error) { return 0, io.EOF }
func (f *fakeTransport) Close() error             { return nil }

func newTestDaemon(t *testing.T) (*daemon.Daemon, *fakeTransport) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	d := daemon.New(daemon.Config{Log: logger, Registry: daemon.NewRegistry()})
	ft := &fakeTransport{}
	require.NoError(t, d.AttachTransport(ft))
	return d, ft
}

func TestInitializeRequestsDriverTable(t *testing.T) {
	d, ft := newTestDaemon(t)
	d.RegisterDriver("enumerator.so", -1, func() daemon.Driver { return New() })
	require.NoError(t, d.LoadOverload(0, "enumerator.so"))

	require.Len(t, ft.sent, 1)
	require.Equal(t, byte(link.CmdOpRead), ft.sent[0].Cmd&link.CmdOpMask)
	require.Equal(t, byte(drivlistReg), ft.sent[0].Reg)
	require.Equal(t, byte(2*daemon.NumCore), ft.sent[0].Count)

	require.True(t, d.Slots[0].InUse)
	require.Equal(t, "enumerator", d.Slots[0].Name)
	require.Equal(t, 0, d.Slots[0].Core)
}

func TestDriverTableResponseLoadsMatchingDrivers(t *testing.T) {
	d, _ := newTestDaemon(t)
	d.RegisterDriver("enumerator.so", -1, func() daemon.Driver { return New() })
	d.RegisterDriver("out4.so", out4.DriverID, func() daemon.Driver { return out4.New() })
	require.NoError(t, d.LoadOverload(0, "enumerator.so"))

	data := make([]byte, 2*daemon.NumCore)
	data[2*3] = byte(out4.DriverID >> 8)
	data[2*3+1] = byte(out4.DriverID)

	d.Cores[enumeratorCore].OnPacket(d, &d.Slots[0], daemon.Packet{
		Cmd:   link.CmdOpRead,
		Reg:   drivlistReg,
		Count: byte(2 * daemon.NumCore),
		Data:  data,
	})

	require.Equal(t, 3, d.Slots[1].Core)
	require.Equal(t, "out4", d.Slots[1].Name)
	require.Equal(t, 1, d.Cores[3].Slot)
	require.Equal(t, out4.DriverID, d.Cores[3].DriverID)
}

func TestDriverTableResponseSkipsUnknownDriverID(t *testing.T) {
	d, _ := newTestDaemon(t)
	d.RegisterDriver("enumerator.so", -1, func() daemon.Driver { return New() })
	require.NoError(t, d.LoadOverload(0, "enumerator.so"))

	data := make([]byte, 2*daemon.NumCore)
	data[2*5+1] = 0x99

	d.Cores[enumeratorCore].OnPacket(d, &d.Slots[0], daemon.Packet{
		Cmd:   link.CmdOpRead,
		Reg:   drivlistReg,
		Count: byte(2 * daemon.NumCore),
		Data:  data,
	})

	require.False(t, d.Slots[1].InUse)
}

func TestDrivlistFormatsOneEntryPerCore(t *testing.T) {
	d, _ := newTestDaemon(t)
	d.RegisterDriver("enumerator.so", -1, func() daemon.Driver { return New() })
	require.NoError(t, d.LoadOverload(0, "enumerator.so"))
	d.Cores[4].DriverID = 0x21

	resp, err := d.InvokeGet(0, 0, 0)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(resp, "\n"), " ")
	require.Len(t, lines, daemon.NumCore)
	require.Equal(t, "0021", lines[4])
}
