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
	"fmt"
	"net"
)

// listenerFd and connFd pull the raw descriptor out from under Go's net
// package so the reactor can poll it directly, the same way it polls the
// serial transport's fd. SyscallConn's RawConn.Control runs its closure
// with the fd held open for the duration, which is all a one-shot dup-free
// read of the fd number needs.
func listenerFd(ln *net.TCPListener) (int, error) {
	raw, err := ln.SyscallConn()
	if err != nil {
		return -1, fmt.Errorf("control: listener syscall conn: %w", err)
	}
	var fd int
	ctrlErr := raw.Control(func(f uintptr) { fd = int(f) })
	if ctrlErr != nil {
		return -1, fmt.Errorf("control: listener fd: %w", ctrlErr)
	}
	return fd, nil
}

func connFd(conn *net.TCPConn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return -1, fmt.Errorf("control: conn syscall conn: %w", err)
	}
	var fd int
	ctrlErr := raw.Control(func(f uintptr) { fd = int(f) })
	if ctrlErr != nil {
		return -1, fmt.Errorf("control: conn fd: %w", ctrlErr)
	}
	return fd, nil
}
