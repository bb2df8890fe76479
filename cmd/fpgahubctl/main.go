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

// Command fpgahubctl is a minimal companion client: it opens one TCP
// connection to fpgahubd, sends one command line, prints whatever text
// comes back up to the prompt byte, and exits.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	addr := "localhost:8870"
	timeout := 5 * time.Second

	cmd := &cobra.Command{
		Use:           "fpgahubctl <command line>",
		Short:         "Send one command to a running fpgahubd and print its reply",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			return send(addr, strings.Join(args, " "), timeout)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", addr, "fpgahubd control address")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", timeout, "reply timeout")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fpgahubctl: %v\n", err)
		os.Exit(1)
	}
}

// send opens one connection, writes line terminated with a newline, and
// copies the reply to stdout until the prompt byte or the deadline.
func send(addr, line string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		return fmt.Errorf("write command: %w", err)
	}

	r := bufio.NewReader(conn)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("read reply: %w", err)
		}
		if b == '\\' {
			return nil
		}
		fmt.Print(string(b))
	}
}
