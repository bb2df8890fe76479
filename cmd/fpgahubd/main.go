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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/demandperipherals/fpgahubd/config"
	"github.com/demandperipherals/fpgahubd/control"
	"github.com/demandperipherals/fpgahubd/daemon"
	"github.com/demandperipherals/fpgahubd/drivers/basys3"
	"github.com/demandperipherals/fpgahubd/drivers/bb4io"
	"github.com/demandperipherals/fpgahubd/drivers/enumerator"
	"github.com/demandperipherals/fpgahubd/drivers/out4"
	"github.com/demandperipherals/fpgahubd/transport/uart"
	"github.com/sirupsen/logrus"
)

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "fpgahubd: %v\n", err)
		return 1
	}

	log := logrus.New()
	switch {
	case cfg.Verbosity >= 2:
		log.SetLevel(logrus.TraceLevel)
	case cfg.Verbosity == 1:
		log.SetLevel(logrus.DebugLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down")
		cancel()
	}()

	if err := run(ctx, cfg, log); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "fpgahubd: %v\n", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	registry := daemon.NewRegistry()
	d := daemon.New(daemon.Config{Log: log, Registry: registry, Prefix: cfg.Prefix})

	registerDrivers(d)

	if cfg.SerialPort != "" {
		transport, err := uart.New(cfg.SerialPort, cfg.BaudRate)
		if err != nil {
			return fmt.Errorf("fpgahubd: open serial port: %w", err)
		}
		defer transport.Close()
		if err := d.AttachTransport(transport); err != nil {
			return fmt.Errorf("fpgahubd: attach transport: %w", err)
		}
	}

	if err := loadSlots(d, cfg); err != nil {
		return err
	}

	listener, err := control.Listen(d, cfg.ListenAddr, cfg.Prefix, cfg.LoopbackOnly)
	if err != nil {
		return fmt.Errorf("fpgahubd: listen on %s: %w", cfg.ListenAddr, err)
	}
	defer listener.Close()

	log.WithField("addr", cfg.ListenAddr).Info("fpgahubd listening")
	return d.Run(ctx)
}

// registerDrivers populates the registry with every driver this build
// was compiled with. Go has no runtime plugin loader worth trusting in
// production, so "loadable" drivers are really just the set compiled
// into this binary and looked up by name or driver ID.
func registerDrivers(d *daemon.Daemon) {
	d.RegisterDriver("enumerator.so", -1, func() daemon.Driver { return enumerator.New() })
	d.RegisterDriver("out4.so", out4.DriverID, func() daemon.Driver { return out4.New() })
	d.RegisterDriver("bb4io.so", bb4io.DriverID, func() daemon.Driver { return bb4io.New() })
	d.RegisterDriver("basys3.so", basys3.DriverID, func() daemon.Driver { return basys3.New() })
}

// loadSlots applies the start-up overload flags, then boots the
// enumerator into slot 0 unless an overload already claimed it.
func loadSlots(d *daemon.Daemon, cfg *config.Config) error {
	slot0Overloaded := false
	for _, ov := range cfg.Overloads {
		if err := d.LoadOverload(ov.Slot, ov.File); err != nil {
			return fmt.Errorf("fpgahubd: overload %d:%s: %w", ov.Slot, ov.File, err)
		}
		if ov.Slot == 0 {
			slot0Overloaded = true
		}
	}
	if !slot0Overloaded {
		if err := d.LoadOverload(0, "enumerator.so"); err != nil {
			return fmt.Errorf("fpgahubd: load enumerator: %w", err)
		}
	}
	return nil
}
