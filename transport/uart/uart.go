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

// Package uart implements the daemon.Transport interface over a serial
// link to the FPGA. The framing and CRC live one layer up, in package
// link; this package's only job is getting raw bytes on and off the
// wire and giving the reactor something it can poll for readability.
package uart

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/demandperipherals/fpgahubd/daemon"
	"github.com/demandperipherals/fpgahubd/internal/syncutil"
	"go.bug.st/serial"
)

// readTimeout bounds each blocking read of the serial port inside the
// pump goroutine, so a port with no traffic still notices Close
// promptly instead of blocking forever in the kernel.
const readTimeout = 100 * time.Millisecond

// Transport opens a serial port and exposes it as a pollable descriptor.
// go.bug.st/serial does not hand back the underlying fd (it has to stay
// portable to Windows, where there is no fd), so a background goroutine
// pumps bytes read off the port into one end of an os.Pipe; the reactor
// polls the other end exactly the way it polls any other handle.
type Transport struct {
	port     serial.Port
	portName string

	pipeR *os.File
	pipeW *os.File

	mu      syncutil.Mutex
	writing bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New opens portName at baud and starts the read pump. The caller is
// responsible for calling Close.
func New(portName string, baud int) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("uart: open %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("uart: set read timeout: %w", err)
	}

	r, w, err := os.Pipe()
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("uart: open readiness pipe: %w", err)
	}

	t := &Transport{
		port:     port,
		portName: portName,
		pipeR:    r,
		pipeW:    w,
		done:     make(chan struct{}),
	}
	t.wg.Add(1)
	go t.pump()
	return t, nil
}

// pump copies bytes from the serial port into the readiness pipe until
// Close is called. It is the only goroutine that ever touches t.port for
// reading; Send is the only one that ever writes to it, so the two never
// race on the port itself.
//
// A read error while Close has not been requested means the link itself
// is gone (unplugged, hung up), not a deliberate shutdown: without the
// FPGA there is nothing left to multiplex, so pump closes pipeW, which
// turns the reactor's next poll of pipeR into a readable EOF and lets
// onSerialReadable see the failure and stop the loop.
func (t *Transport) pump() {
	defer t.wg.Done()
	buf := make([]byte, 4096)
	for {
		select {
		case <-t.done:
			return
		default:
		}
		n, err := t.port.Read(buf)
		if err != nil {
			select {
			case <-t.done:
				return
			default:
				_ = t.pipeW.Close()
				return
			}
		}
		if n == 0 {
			continue
		}
		if _, werr := t.pipeW.Write(buf[:n]); werr != nil {
			return
		}
	}
}

// Send implements daemon.Transport. The underlying serial write is
// synchronous; daemon.ErrLinkBusy models the "write would block" case the
// daemon's transmit contract requires, returned for a caller already in
// the middle of a send and for a short write, since go.bug.st/serial
// exposes no non-blocking write primitive to detect a full kernel buffer
// directly. A failed write is reported as daemon.ErrLinkClosed.
func (t *Transport) Send(frame []byte) error {
	t.mu.Lock()
	if t.writing {
		t.mu.Unlock()
		return daemon.ErrLinkBusy
	}
	t.writing = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.writing = false
		t.mu.Unlock()
	}()

	n, err := t.port.Write(frame)
	if err != nil {
		return fmt.Errorf("%w: uart write: %w", daemon.ErrLinkClosed, err)
	}
	if n != len(frame) {
		return fmt.Errorf("%w: uart short write: wrote %d of %d bytes", daemon.ErrLinkBusy, n, len(frame))
	}
	return nil
}

// Fd returns the readiness pipe's read end, the descriptor the reactor
// polls. It is never the serial port's own descriptor.
func (t *Transport) Fd() int {
	return int(t.pipeR.Fd())
}

// Read drains whatever the pump has copied into the readiness pipe.
func (t *Transport) Read(buf []byte) (int, error) {
	return t.pipeR.Read(buf)
}

// Close stops the pump and releases the port and pipe. Calling it again
// after the first call is a no-op.
func (t *Transport) Close() error {
	select {
	case <-t.done:
		return nil
	default:
	}
	close(t.done)
	err := t.port.Close()
	t.wg.Wait()
	_ = t.pipeW.Close()
	_ = t.pipeR.Close()
	if err != nil {
		return fmt.Errorf("uart: close: %w", err)
	}
	return nil
}

// Ensure Transport implements daemon.Transport.
var _ daemon.Transport = (*Transport)(nil)
