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
	"fmt"
	"time"

	"github.com/demandperipherals/fpgahubd/link"
	"github.com/demandperipherals/fpgahubd/reactor"
	"github.com/sirupsen/logrus"
)

// Transport is everything the daemon needs from the serial link. It is
// satisfied by transport/uart.Transport; tests substitute an in-memory fake.
type Transport interface {
	// Send writes a framed, stuffed packet. It returns ErrLinkBusy if the
	// write would block and ErrLinkClosed if the link is gone.
	Send(frame []byte) error
	// Fd returns the descriptor the reactor polls for readability.
	Fd() int
	// Read drains whatever bytes are available without blocking.
	Read(buf []byte) (int, error)
	Close() error
}

// Daemon is the single value holding every fixed-size table the process
// operates on: slots, cores, sessions, the reactor, and the serial
// transport. Every callback registered with the reactor closes over a
// *Daemon rather than touching package-level state, so the whole process
// can run more than one instance (as tests do) without interference.
type Daemon struct {
	Logger *logrus.Logger

	Loop      *reactor.Loop
	transport Transport
	decoder   *link.Decoder
	serialFd  reactor.HandleID

	Slots    [MaxSlot]Slot
	Cores    [NumCore]Core
	Sessions [MaxSessions]Session

	registry *Registry
	prefix   string
}

// Config holds the knobs New needs that do not belong to any one
// subsystem's own package.
type Config struct {
	Log       *logrus.Logger
	Registry  *Registry
	Prefix    string
	MaxTimers int
}

// New builds a Daemon with empty tables. Call AttachTransport before Run.
func New(cfg Config) *Daemon {
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	maxTimers := cfg.MaxTimers
	if maxTimers == 0 {
		maxTimers = MaxTimers
	}
	d := &Daemon{
		Logger:   cfg.Log,
		Loop:     reactor.NewLoop(maxTimers, MaxHandles),
		decoder:  link.NewDecoder(),
		registry: cfg.Registry,
		prefix:   cfg.Prefix,
		serialFd: reactor.NoHandle,
	}
	for i := range d.Cores {
		d.Cores[i].Slot = SlotNone
	}
	for i := range d.Slots {
		d.Slots[i].Core = CoreNone
		for j := range d.Slots[i].Resources {
			d.Slots[i].Resources[j].UILock = LockNone
		}
	}
	for i := range d.Sessions {
		d.Sessions[i].Idx = i
		d.Sessions[i].HandleID = reactor.NoHandle
	}
	return d
}

// AttachTransport registers the serial transport's descriptor with the
// reactor and wires its readability into the decoder + router pipeline.
func (d *Daemon) AttachTransport(t Transport) error {
	d.transport = t
	id, err := d.Loop.AddHandle(t.Fd(), reactor.Read, d.onSerialReadable)
	if err != nil {
		return fmt.Errorf("daemon: attach transport: %w", err)
	}
	d.serialFd = id
	return nil
}

func (d *Daemon) onSerialReadable(reactor.Interest) {
	buf := make([]byte, 4096)
	n, err := d.transport.Read(buf)
	if err != nil {
		d.Logger.WithError(err).Error("fatal: serial link read failed")
		d.Loop.Stop(fmt.Errorf("daemon: serial link lost: %w", err))
		return
	}
	for i := 0; i < n; i++ {
		pkt, ferr := d.decoder.Feed(buf[i])
		switch {
		case ferr != nil:
			d.Logger.WithError(ferr).Warn("link protocol violation, frame discarded")
		case pkt != nil:
			d.Dispatch(*pkt)
		}
	}
}

// Run starts the reactor. It blocks until ctx is cancelled or the reactor
// hits an unrecoverable error.
func (d *Daemon) Run(ctx context.Context) error {
	return d.Loop.Run(ctx)
}

// AddTimer implements Services.
func (d *Daemon) AddTimer(dur, period time.Duration, fn func(time.Time)) (TimerID, error) {
	id, err := d.Loop.AddTimer(dur, period, fn)
	return TimerID(id), err
}

// DelTimer implements Services.
func (d *Daemon) DelTimer(id TimerID) {
	d.Loop.DelTimer(reactor.TimerID(id))
}

// AddHandle implements Services.
func (d *Daemon) AddHandle(fd int, ev reactor.Interest, fn func(reactor.Interest)) (reactor.HandleID, error) {
	return d.Loop.AddHandle(fd, ev, fn)
}

// DelHandle implements Services.
func (d *Daemon) DelHandle(id reactor.HandleID) {
	d.Loop.DelHandle(id)
}

// SendPacket implements Services.
func (d *Daemon) SendPacket(core int, pkt Packet) error {
	if core < 0 || core >= NumCore {
		return fmt.Errorf("%w: %d", ErrUnknownCore, core)
	}
	wire := link.Packet{
		Cmd:   0xF0 | (pkt.Cmd & 0x0F),
		Core:  0xE0 | (byte(core) & 0x0F),
		Reg:   pkt.Reg,
		Count: pkt.Count,
		Data:  pkt.Data,
	}
	frame, err := link.Encode(wire)
	if err != nil {
		return fmt.Errorf("daemon: encode packet: %w", err)
	}
	if d.transport == nil {
		return ErrLinkClosed
	}
	if err := d.transport.Send(frame); err != nil {
		return err
	}
	return nil
}

// Log implements Services.
func (d *Daemon) Log(level LogLevel, msg string, fields ...any) {
	entry := d.Logger.WithFields(fieldsToLogrus(fields))
	switch level {
	case LogDebug:
		entry.Debug(msg)
	case LogInfo:
		entry.Info(msg)
	case LogWarn:
		entry.Warn(msg)
	default:
		entry.Error(msg)
	}
}

var _ Services = (*Daemon)(nil)

func fieldsToLogrus(fields []any) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		f[key] = fields[i+1]
	}
	return f
}
