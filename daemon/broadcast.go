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

// broadcastKey deterministically encodes (slot, resource) into a nonzero
// token, so 0 remains a unique "no subscribers" sentinel regardless of
// which slot or resource index is involved.
func broadcastKey(slot, resource int) uint32 {
	return uint32(slot*MaxResourcesPerSlot+resource) + 1
}

// Subscribe binds sessionIdx to (slot, resource)'s broadcast stream and
// returns the key. If the resource currently has no subscribers its key
// slot is populated; otherwise the existing key is reused (it is already
// deterministic for this pair).
func (d *Daemon) Subscribe(slotIdx, rscIdx, sessionIdx int) uint32 {
	key := broadcastKey(slotIdx, rscIdx)
	rsc := &d.Slots[slotIdx].Resources[rscIdx]
	if rsc.Bcast == 0 {
		rsc.Bcast = key
	}
	d.Sessions[sessionIdx].BcastKey = key
	return key
}

// UnsubscribeSession clears sessionIdx's broadcast binding unconditionally.
// The resource-side key is left alone; it is only ever cleared lazily, by
// BroadcastUI finding no matching session on a later publish.
func (d *Daemon) UnsubscribeSession(sessionIdx int) {
	if sessionIdx < 0 || sessionIdx >= MaxSessions {
		return
	}
	d.Sessions[sessionIdx].BcastKey = 0
}

// SendUI implements Services: a targeted write to exactly one session,
// silently dropped if that session is no longer active.
func (d *Daemon) SendUI(sessionIdx int, payload []byte) {
	if sessionIdx < 0 || sessionIdx >= MaxSessions {
		return
	}
	s := &d.Sessions[sessionIdx]
	if !s.InUse || s.Conn == nil {
		return
	}
	if _, err := s.Conn.Write(payload); err != nil {
		d.teardownSession(s)
	}
}

// Prompt implements Services: emits the single prompt byte marking a
// command's response as complete.
func (d *Daemon) Prompt(sessionIdx int) {
	d.SendUI(sessionIdx, []byte{'\\'})
}

// BroadcastUI implements Services. It walks the session table once,
// writing payload to every session whose broadcast key matches *key. If
// none matched, *key is cleared to 0 so the driver's next publish attempt
// skips formatting entirely.
func (d *Daemon) BroadcastUI(key *uint32, payload []byte) {
	if key == nil || *key == 0 {
		return
	}
	matched := 0
	for i := range d.Sessions {
		s := &d.Sessions[i]
		if !s.InUse || s.BcastKey != *key {
			continue
		}
		matched++
		if _, err := s.Conn.Write(payload); err != nil {
			d.teardownSession(s)
		}
	}
	if matched == 0 {
		*key = 0
	}
}
