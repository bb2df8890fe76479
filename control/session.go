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
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/demandperipherals/fpgahubd/daemon"
	"github.com/demandperipherals/fpgahubd/reactor"
)

// ErrLinkWriteFailed and ErrMissingAck are the two numbered, regex-stable
// error lines the daemon keeps textually stable across releases. A set
// whose callback fails with daemon.ErrLinkBusy replies with
// ErrLinkWriteFailed (see replySetError). No code path in this tree
// emits ErrMissingAck: the built-in drivers' ack watchdogs only log a
// warning through the structured logger.
const (
	ErrLinkWriteFailed = "ERROR 100 link write failed\n"
	ErrMissingAck      = "ERROR 101 no ack received from hardware\n"
)

const promptByte = '\\'

// Session is one accepted TCP connection's line-oriented command parser.
// It owns the raw net.Conn for reading; writes back to the client go
// through the daemon's Services surface so replies that arrive
// asynchronously (a locked get's hardware reply, a broadcast) use the
// exact same path as a synchronous command response.
type Session struct {
	d          *daemon.Daemon
	daemonSess *daemon.Session
	conn       net.Conn
	prefix     string
}

func (s *Session) onReadable(reactor.Interest) {
	var buf [256]byte
	n, err := s.conn.Read(buf[:])
	if err != nil {
		s.d.CloseSession(s.daemonSess)
		return
	}
	if !s.daemonSess.InUse {
		return
	}
	line := s.daemonSess.LineBuf
	line = append(line, buf[:n]...)
	for {
		nl := indexByte(line, '\n')
		if nl < 0 {
			break
		}
		cmdLine := strings.TrimRight(string(line[:nl]), "\r")
		line = line[nl+1:]
		s.process(cmdLine)
		if !s.daemonSess.InUse {
			return
		}
	}
	if len(line) > daemon.MaxCommandLine {
		// A client sending an unterminated line longer than the bound is
		// dropped rather than allowed to grow the buffer unboundedly.
		s.d.SendUI(s.daemonSess.Idx, []byte("ERROR line too long\n"))
		line = line[:0]
	}
	s.daemonSess.LineBuf = append(s.daemonSess.LineBuf[:0], line...)
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func (s *Session) process(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	verb := fields[0]
	args := fields[1:]

	switch verb {
	case s.prefix + "set":
		s.handleSet(args)
	case s.prefix + "get":
		s.handleGet(args)
	case s.prefix + "cat":
		s.handleCat(args)
		return // handleCat prompts only on error; a subscribed session gets no prompt
	case s.prefix + "list":
		s.handleList(args)
	case s.prefix + "loadso":
		s.handleLoadSO(args)
	default:
		s.reply(fmt.Sprintf("ERROR unknown command %q\n", verb))
	}
	s.d.Prompt(s.daemonSess.Idx)
}

func (s *Session) reply(text string) {
	if text == "" {
		return
	}
	s.d.SendUI(s.daemonSess.Idx, []byte(text))
}

// resolve looks a selector/resource pair up, returning a single
// formatted parse-error line on failure so every verb handler shares
// one error-reporting shape.
func (s *Session) resolve(selector, resource string) (slotIdx, rscIdx int, ok bool) {
	slotIdx, err := s.d.ResolveSlot(selector)
	if err != nil {
		s.reply(fmt.Sprintf("ERROR %v\n", err))
		return 0, 0, false
	}
	rscIdx, err = s.d.ResolveResource(slotIdx, resource)
	if err != nil {
		s.reply(fmt.Sprintf("ERROR %v\n", err))
		return 0, 0, false
	}
	return slotIdx, rscIdx, true
}

func (s *Session) handleSet(args []string) {
	if len(args) < 2 {
		s.reply("ERROR usage: set slot|name resource value...\n")
		return
	}
	slotIdx, rscIdx, ok := s.resolve(args[0], args[1])
	if !ok {
		return
	}
	value := strings.Join(args[2:], " ")
	resp, err := s.d.InvokeSet(slotIdx, rscIdx, s.daemonSess.Idx, value)
	if err != nil {
		s.replySetError(err)
		return
	}
	s.reply(resp)
}

func (s *Session) replySetError(err error) {
	if errors.Is(err, daemon.ErrLinkBusy) {
		s.reply(ErrLinkWriteFailed)
		return
	}
	s.reply(fmt.Sprintf("ERROR %v\n", err))
}

func (s *Session) handleGet(args []string) {
	if len(args) < 2 {
		s.reply("ERROR usage: get slot|name resource\n")
		return
	}
	slotIdx, rscIdx, ok := s.resolve(args[0], args[1])
	if !ok {
		return
	}
	resp, err := s.d.InvokeGet(slotIdx, rscIdx, s.daemonSess.Idx)
	if err != nil {
		s.reply(fmt.Sprintf("ERROR %v\n", err))
		return
	}
	s.reply(resp)
}

func (s *Session) handleCat(args []string) {
	if len(args) < 2 {
		s.reply("ERROR usage: cat slot|name resource\n")
		s.d.Prompt(s.daemonSess.Idx)
		return
	}
	slotIdx, rscIdx, ok := s.resolve(args[0], args[1])
	if !ok {
		s.d.Prompt(s.daemonSess.Idx)
		return
	}
	rsc := &s.d.Slots[slotIdx].Resources[rscIdx]
	if rsc.Access&daemon.Broadcastable == 0 {
		s.reply(fmt.Sprintf("ERROR %v\n", daemon.ErrNotBroadcast))
		s.d.Prompt(s.daemonSess.Idx)
		return
	}
	s.d.Subscribe(slotIdx, rscIdx, s.daemonSess.Idx)
}

func (s *Session) handleList(args []string) {
	if len(args) == 0 {
		var b strings.Builder
		for i := range s.d.Slots {
			if s.d.Slots[i].InUse {
				fmt.Fprintf(&b, "%d %s\n", i, s.d.Slots[i].Name)
			}
		}
		s.reply(b.String())
		return
	}
	slotIdx, err := s.d.ResolveSlot(args[0])
	if err != nil {
		s.reply(fmt.Sprintf("ERROR %v\n", err))
		return
	}
	s.reply(s.d.Slots[slotIdx].Help + "\n")
}

func (s *Session) handleLoadSO(args []string) {
	if len(args) != 1 {
		s.reply("ERROR usage: loadso filename\n")
		return
	}
	idx, err := s.d.LoadSO(args[0])
	if err != nil {
		s.reply(fmt.Sprintf("ERROR %v\n", err))
		return
	}
	s.reply(fmt.Sprintf("%d\n", idx))
}
