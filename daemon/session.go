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

	"github.com/demandperipherals/fpgahubd/reactor"
)

// AcceptSession allocates a session from the fixed pool for a newly
// accepted connection. It returns ErrNoFreeSession if the pool is full,
// in which case the caller is expected to close the connection instead.
func (d *Daemon) AcceptSession(conn sessionWriter, peerAddr string) (*Session, error) {
	for i := range d.Sessions {
		s := &d.Sessions[i]
		if s.InUse {
			continue
		}
		*s = Session{
			Idx:      i,
			Conn:     conn,
			PeerAddr: peerAddr,
			LineBuf:  make([]byte, 0, MaxCommandLine),
			InUse:    true,
			HandleID: reactor.NoHandle,
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w", ErrNoFreeSession)
}

// CloseSession tears a session down: clears its broadcast binding,
// removes its reactor registration, and closes the connection. Any
// resource whose UI lock points at this session is left untouched here;
// that lock is discovered stale lazily, when the pending reply tries to
// route back to a session that is no longer InUse.
func (d *Daemon) CloseSession(s *Session) {
	d.teardownSession(s)
}

func (d *Daemon) teardownSession(s *Session) {
	if !s.InUse {
		return
	}
	d.UnsubscribeSession(s.Idx)
	if s.HandleID != reactor.NoHandle {
		d.Loop.DelHandle(s.HandleID)
	}
	if s.Conn != nil {
		_ = s.Conn.Close()
	}
	s.InUse = false
	s.Conn = nil
	s.LineBuf = nil
}

// sessionActive reports whether sessionIdx currently names a live
// session, the check every lock-routing reply needs before it writes.
func (d *Daemon) sessionActive(sessionIdx int) bool {
	return sessionIdx >= 0 && sessionIdx < MaxSessions && d.Sessions[sessionIdx].InUse
}
