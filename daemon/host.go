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
	"fmt"

	"github.com/sirupsen/logrus"
)

// DriverFactory constructs a fresh Driver instance. Registry stores
// factories rather than shared Driver values so two slots can load the
// same driver file without aliasing state.
type DriverFactory func() Driver

// Registry is the in-process stand-in for the original core's dlopen'd
// shared-library loader: Go has no safe way to resolve a runtime ABI
// symbol the way C does, so drivers are compiled in and registered here
// under both the file-name alias loadso expects and the numeric
// driver-ID the enumerator reads off the FPGA.
type Registry struct {
	byFile     map[string]DriverFactory
	byDriverID map[int]DriverFactory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byFile:     make(map[string]DriverFactory),
		byDriverID: make(map[int]DriverFactory),
	}
}

// Register makes factory available under file (the name loadso and
// slotID:filename overloads use) and, if driverID >= 0, under that
// FPGA-advertised driver ID too.
func (r *Registry) Register(file string, driverID int, factory DriverFactory) {
	r.byFile[file] = factory
	if driverID >= 0 {
		r.byDriverID[driverID] = factory
	}
}

func (r *Registry) lookupFile(file string) (DriverFactory, bool) {
	f, ok := r.byFile[file]
	return f, ok
}

func (r *Registry) lookupDriverID(id int) (DriverFactory, bool) {
	f, ok := r.byDriverID[id]
	return f, ok
}

// RegisterDriver makes factory available to LoadOverload/LoadEnumerated/
// LoadSO under file and, if driverID >= 0, under that FPGA-advertised
// driver ID too. It is the entry point packages outside daemon (the
// concrete driver packages, and cmd/fpgahubd's wiring) use to populate
// the registry a Daemon was constructed with.
func (d *Daemon) RegisterDriver(file string, driverID int, factory DriverFactory) {
	d.registry.Register(file, driverID, factory)
}

// freeSlot returns the index of the next unused slot.
func (d *Daemon) freeSlot() (int, error) {
	for i := range d.Slots {
		if !d.Slots[i].InUse {
			return i, nil
		}
	}
	return SlotNone, fmt.Errorf("%w", ErrNoFreeSlot)
}

// loadInto runs factory's driver into slotIdx, rolling the slot back to
// unused on any failure so a bad driver never leaves a half-initialized
// slot occupying the table. coreIdx is CoreNone unless the caller (the
// enumerator path) already knows which FPGA core this slot owns; a
// driver that sees a non-None Slot.Core inside Initialize can bind its
// packet callback immediately instead of waiting to be told later.
func (d *Daemon) loadInto(slotIdx int, file string, factory DriverFactory, coreIdx int) error {
	if d.Slots[slotIdx].InUse {
		return fmt.Errorf("%w: slot %d", ErrSlotInUse, slotIdx)
	}
	drv := factory()
	slot := &d.Slots[slotIdx]
	*slot = Slot{
		Driver:     drv,
		DriverFile: file,
		Core:       coreIdx,
		InUse:      true,
	}
	for i := range slot.Resources {
		slot.Resources[i].UILock = LockNone
	}
	if err := drv.Initialize(slot, d); err != nil {
		*slot = Slot{Core: CoreNone}
		d.Logger.WithError(err).WithFields(logrus.Fields{"slot": slotIdx, "driver": file}).Warn("driver initialize failed, slot freed")
		return fmt.Errorf("%w: %s: %w", ErrDriverInitFailed, file, err)
	}
	return nil
}

// LoadOverload implements the explicit "slotID:filename" start-up option
// (§4.4 path a): the named driver is forced into a caller-chosen slot,
// including slot 0.
func (d *Daemon) LoadOverload(slotIdx int, file string) error {
	if slotIdx < 0 || slotIdx >= MaxSlot {
		return fmt.Errorf("daemon: overload slot %d out of range", slotIdx)
	}
	factory, ok := d.registry.lookupFile(file)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDriverNotFound, file)
	}
	return d.loadInto(slotIdx, file, factory, CoreNone)
}

// LoadEnumerated implements the enumerator's driver-ID → file-name path
// (§4.4 path b), loading into the next free slot and recording the
// core↔slot mapping the enumerator assigns.
func (d *Daemon) LoadEnumerated(coreIdx, driverID int) error {
	if coreIdx < 0 || coreIdx >= NumCore {
		return fmt.Errorf("%w: %d", ErrUnknownCore, coreIdx)
	}
	factory, ok := d.registry.lookupDriverID(driverID)
	if !ok {
		return fmt.Errorf("%w: driver id %d", ErrDriverNotFound, driverID)
	}
	slotIdx, err := d.freeSlot()
	if err != nil {
		return err
	}
	file := fmt.Sprintf("driver-%d", driverID)
	if err := d.loadInto(slotIdx, file, factory, coreIdx); err != nil {
		return err
	}
	d.Cores[coreIdx].DriverID = driverID
	d.Cores[coreIdx].Slot = slotIdx
	return nil
}

// LoadSO implements the `loadso` control command (§4.4 path c): the
// named driver is loaded into the next free slot.
func (d *Daemon) LoadSO(file string) (int, error) {
	factory, ok := d.registry.lookupFile(file)
	if !ok {
		return SlotNone, fmt.Errorf("%w: %s", ErrDriverNotFound, file)
	}
	slotIdx, err := d.freeSlot()
	if err != nil {
		return SlotNone, err
	}
	if err := d.loadInto(slotIdx, file, factory, CoreNone); err != nil {
		return SlotNone, err
	}
	return slotIdx, nil
}

// BindCore attaches a slot's core and its packet callback. Drivers that
// own FPGA-backed hardware call this from Initialize once they know which
// core they were assigned (normally already set by LoadEnumerated, but
// LoadOverload and LoadSO leave it to the driver to claim explicitly).
func (d *Daemon) BindCore(slot *Slot, coreIdx int, fn PacketFunc) error {
	if coreIdx < 0 || coreIdx >= NumCore {
		return fmt.Errorf("%w: %d", ErrUnknownCore, coreIdx)
	}
	for i := range d.Slots {
		if &d.Slots[i] == slot {
			slot.Core = coreIdx
			d.Cores[coreIdx].Slot = i
			d.Cores[coreIdx].OnPacket = fn
			return nil
		}
	}
	return fmt.Errorf("daemon: slot not found in table")
}
