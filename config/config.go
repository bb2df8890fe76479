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

// Package config parses fpgahubd's command-line flags into a Config the
// daemon entrypoint wires up.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// Overload is one parsed "-o slotID:filename" flag: a caller-forced
// driver placement that bypasses the enumerator for that slot.
type Overload struct {
	Slot int
	File string
}

// Config holds every flag fpgahubd accepts.
type Config struct {
	SerialPort   string
	BaudRate     int
	ListenAddr   string
	LoopbackOnly bool
	DriverPath   string
	Prefix       string
	Verbosity    int
	Overloads    []Overload
}

func defaults() *Config {
	return &Config{
		BaudRate:   115200,
		ListenAddr: "localhost:8870",
		DriverPath: ".",
	}
}

// Parse builds a Config from args (normally os.Args[1:]). It never calls
// os.Exit: a bad flag or overload string comes back as an error for the
// caller to report and exit on its own terms.
func Parse(args []string) (*Config, error) {
	cfg := defaults()
	var overloads []string

	cmd := &cobra.Command{
		Use:           "fpgahubd",
		Short:         "Multiplex the FPGA serial link across pluggable peripheral drivers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfg.SerialPort, "device", "d", cfg.SerialPort, "serial device path to the FPGA")
	cmd.Flags().IntVarP(&cfg.BaudRate, "baud", "b", cfg.BaudRate, "serial baud rate")
	cmd.Flags().StringVarP(&cfg.ListenAddr, "listen", "l", cfg.ListenAddr, "TCP address to accept control connections on")
	cmd.Flags().BoolVar(&cfg.LoopbackOnly, "loopback-only", cfg.LoopbackOnly, "refuse control connections from non-loopback addresses")
	cmd.Flags().StringVar(&cfg.DriverPath, "driver-path", cfg.DriverPath, "driver directory; stored in Config but not read: loadso resolves names against the compiled-in driver registry")
	cmd.Flags().StringVar(&cfg.Prefix, "prefix", cfg.Prefix, "command prefix clients must use (e.g. \"pc\" for pcset/pcget)")
	cmd.Flags().CountVarP(&cfg.Verbosity, "verbose", "v", "increase log verbosity; repeatable")
	cmd.Flags().StringArrayVarP(&overloads, "overload", "o", nil, "force slotID:filename into a slot, bypassing the enumerator; repeatable")

	// cobra treats a nil argument slice as "use os.Args", not "no
	// arguments", so an explicitly empty Parse(nil) call needs a non-nil
	// slice to actually mean zero flags.
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	for _, spec := range overloads {
		ov, err := parseOverload(spec)
		if err != nil {
			return nil, err
		}
		cfg.Overloads = append(cfg.Overloads, ov)
	}
	return cfg, nil
}

func parseOverload(spec string) (Overload, error) {
	slotStr, file, ok := strings.Cut(spec, ":")
	if !ok || file == "" {
		return Overload{}, fmt.Errorf("config: overload %q must be slotID:filename", spec)
	}
	slot, err := strconv.Atoi(slotStr)
	if err != nil {
		return Overload{}, fmt.Errorf("config: overload %q: bad slot id: %w", spec, err)
	}
	return Overload{Slot: slot, File: file}, nil
}
