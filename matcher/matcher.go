/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package matcher pairs PTPv1 Sync and FollowUp messages into raw phase
// offset samples, keyed by (grandmaster, sequence id).
package matcher

import (
	"time"

	"github.com/dantesync/dantesync/protocol"
)

// DefaultWindow is how long a pending Sync is kept waiting for its FollowUp
// before being considered stale.
const DefaultWindow = 500 * time.Millisecond

// MaxPending bounds the table so a burst of Syncs without FollowUps can't
// grow memory unboundedly; the oldest pending entry is evicted on overflow.
const MaxPending = 64

// RawSample is a raw, unfiltered phase offset measurement (spec §3).
type RawSample struct {
	Grandmaster   protocol.GrandmasterID
	SequenceID    uint16
	T1            protocol.Timestamp // master transmit time, from FollowUp
	T2            time.Time          // local host receive time, from the matching Sync
	ArrivalHost   time.Time          // host time the FollowUp itself arrived
}

// OffsetNS returns T2-T1 in signed nanoseconds, using T2's wall-clock
// component truncated to the same integer timestamp domain as T1. Since T1
// is device-uptime, only OffsetNS's *rate of change* carries meaning.
func (s RawSample) OffsetNS() int64 {
	t1ns := int64(s.T1.Seconds)*int64(time.Second) + int64(s.T1.Nanoseconds)
	t2ns := s.T2.UnixNano()
	return t2ns - t1ns
}

type pending struct {
	key       key
	t2        time.Time
	insertedAt time.Time
}

type key struct {
	gm  protocol.GrandmasterID
	seq uint16
}

// Matcher maintains the pending-Sync table. It is not safe for concurrent
// use; the PTP thread is its only caller.
type Matcher struct {
	window time.Duration
	table  map[key]pending
	order  []key // insertion order, oldest first, for overflow eviction
}

// New returns a Matcher using window as the Sync-to-FollowUp matching
// deadline. A zero window selects DefaultWindow.
func New(window time.Duration) *Matcher {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Matcher{
		window: window,
		table:  make(map[key]pending),
	}
}

// AddSync records a pending Sync's receive time, to be matched against a
// later FollowUp with the same grandmaster and sequence id.
func (m *Matcher) AddSync(gm protocol.GrandmasterID, seq uint16, hostRxTime time.Time) {
	now := hostRxTime
	m.evictStale(now)

	k := key{gm: gm, seq: seq}
	if _, exists := m.table[k]; !exists {
		m.order = append(m.order, k)
	}
	m.table[k] = pending{key: k, t2: hostRxTime, insertedAt: now}

	if len(m.table) > MaxPending {
		m.evictOldest()
	}
}

// MatchFollowUp looks up the Sync matching the FollowUp's grandmaster and
// associated sequence id. It returns (sample, true) on a hit within the
// matching window, or (zero value, false) on a miss or a stale entry —
// both are silently dropped per spec, the caller only needs the bool.
func (m *Matcher) MatchFollowUp(gm protocol.GrandmasterID, f *protocol.FollowUp, arrivalHost time.Time) (RawSample, bool) {
	k := key{gm: gm, seq: f.AssociatedSequenceID}
	p, ok := m.table[k]
	if !ok {
		return RawSample{}, false
	}
	delete(m.table, k)
	m.removeFromOrder(k)

	if arrivalHost.Sub(p.insertedAt) > m.window {
		return RawSample{}, false
	}

	return RawSample{
		Grandmaster: gm,
		SequenceID:  f.AssociatedSequenceID,
		T1:          f.PreciseOriginTimestamp,
		T2:          p.t2,
		ArrivalHost: arrivalHost,
	}, true
}

// Pending returns the number of Syncs currently awaiting a FollowUp.
func (m *Matcher) Pending() int {
	return len(m.table)
}

func (m *Matcher) evictStale(now time.Time) {
	for k, p := range m.table {
		if now.Sub(p.insertedAt) > m.window {
			delete(m.table, k)
			m.removeFromOrder(k)
		}
	}
}

func (m *Matcher) evictOldest() {
	if len(m.order) == 0 {
		return
	}
	oldest := m.order[0]
	m.order = m.order[1:]
	delete(m.table, oldest)
}

func (m *Matcher) removeFromOrder(k key) {
	for i, o := range m.order {
		if o == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
