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

// Package control implements the line-oriented ASCII command listener:
// one TCP port, one session per accepted client, verbs set/get/cat/list/
// loadso dispatched against a *daemon.Daemon.
package control

import (
	"fmt"
	"net"

	"github.com/demandperipherals/fpgahubd/daemon"
	"github.com/demandperipherals/fpgahubd/reactor"
)

// Listener owns the accepting socket and hands every accepted connection
// to the Daemon's fixed session pool.
type Listener struct {
	d            *daemon.Daemon
	ln           *net.TCPListener
	handleID     reactor.HandleID
	prefix       string
	loopbackOnly bool
}

// Listen opens addr (host:port) and registers it with d's reactor. addr
// with an empty host binds to any interface; "127.0.0.1:port" restricts
// to loopback. If loopbackOnly is set, connections from any other peer
// address are accepted and immediately closed rather than adopted.
func Listen(d *daemon.Daemon, addr, prefix string, loopbackOnly bool) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("control: resolve %s: %w", addr, err)
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("control: listen %s: %w", addr, err)
	}
	l := &Listener{d: d, ln: ln, prefix: prefix, loopbackOnly: loopbackOnly, handleID: reactor.NoHandle}

	fd, err := listenerFd(ln)
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	id, err := d.Loop.AddHandle(fd, reactor.Read, l.onAcceptable)
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("control: register listener: %w", err)
	}
	l.handleID = id
	return l, nil
}

// Close stops accepting new connections. Sessions already accepted keep
// running until the client disconnects.
func (l *Listener) Close() error {
	if l.handleID != reactor.NoHandle {
		l.d.Loop.DelHandle(l.handleID)
	}
	return l.ln.Close()
}

func (l *Listener) onAcceptable(reactor.Interest) {
	conn, err := l.ln.AcceptTCP()
	if err != nil {
		l.d.Logger.WithError(err).Warn("control: accept failed")
		return
	}
	if l.loopbackOnly && !isLoopback(conn) {
		l.d.Logger.WithField("peer", conn.RemoteAddr()).Warn("control: rejecting non-loopback connection")
		_ = conn.Close()
		return
	}
	if err := l.adopt(conn); err != nil {
		l.d.Logger.WithError(err).Warn("control: session pool full, closing connection")
		_ = conn.Close()
	}
}

func (l *Listener) adopt(conn *net.TCPConn) error {
	sess, err := l.d.AcceptSession(conn, conn.RemoteAddr().String())
	if err != nil {
		return err
	}
	fd, err := connFd(conn)
	if err != nil {
		l.d.CloseSession(sess)
		return err
	}
	s := &Session{d: l.d, daemonSess: sess, conn: conn, prefix: l.prefix}
	id, err := l.d.Loop.AddHandle(fd, reactor.Read, s.onReadable)
	if err != nil {
		l.d.CloseSession(sess)
		return err
	}
	sess.HandleID = id
	return nil
}

func isLoopback(conn *net.TCPConn) bool {
	addr, ok := conn.RemoteAddr().(*net.TCPAddr)
	return ok && addr.IP.IsLoopback()
}
