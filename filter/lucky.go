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

// Package filter implements the lucky-packet denoising filter and the
// drift-rate estimator that runs on its output.
package filter

import "time"

// DefaultWindowSize is N, the number of raw samples collected before a
// denoised sample is emitted.
const DefaultWindowSize = 8

// DefaultMinDeltaNS is the minimum acceptable spread within a window; a
// smaller spread looks like a duplicate or a replayed capture rather than
// real jitter.
const DefaultMinDeltaNS = 1

// RawPoint is the minimal shape the lucky filter needs from a matcher
// sample: a signed offset and the host time it was observed at.
type RawPoint struct {
	OffsetNS int64
	HostTime time.Time
}

// DenoisedSample is the lucky-packet filter's output: the sample within a
// window with the smallest measurable path-induced error.
type DenoisedSample struct {
	OffsetNS int64
	HostTime time.Time
}

// LuckyFilter collects raw samples into non-overlapping windows of size N
// and emits the minimum-offset sample of each full window. It is not a
// sliding window: the buffer resets to empty immediately after each emit.
type LuckyFilter struct {
	n          int
	minDeltaNS int64
	buf        []RawPoint
}

// NewLuckyFilter returns a filter with window size n and spread floor
// minDeltaNS. n <= 0 selects DefaultWindowSize; minDeltaNS < 0 selects
// DefaultMinDeltaNS.
func NewLuckyFilter(n int, minDeltaNS int64) *LuckyFilter {
	if n <= 0 {
		n = DefaultWindowSize
	}
	if minDeltaNS < 0 {
		minDeltaNS = DefaultMinDeltaNS
	}
	return &LuckyFilter{n: n, minDeltaNS: minDeltaNS, buf: make([]RawPoint, 0, n)}
}

// Add appends a raw point to the current window. When the window fills, it
// returns the denoised sample and resets. ok is false both while the
// window is still filling and when a full window's spread was rejected by
// minDeltaNS (likely a duplicate or replay).
func (f *LuckyFilter) Add(p RawPoint) (DenoisedSample, bool) {
	f.buf = append(f.buf, p)
	if len(f.buf) < f.n {
		return DenoisedSample{}, false
	}

	minIdx := 0
	maxOffset, minOffset := f.buf[0].OffsetNS, f.buf[0].OffsetNS
	for i, s := range f.buf {
		if s.OffsetNS < minOffset {
			minOffset = s.OffsetNS
			minIdx = i
		}
		if s.OffsetNS > maxOffset {
			maxOffset = s.OffsetNS
		}
	}
	winner := f.buf[minIdx]
	spread := maxOffset - minOffset

	f.Reset()

	if spread < f.minDeltaNS {
		return DenoisedSample{}, false
	}
	return DenoisedSample{OffsetNS: winner.OffsetNS, HostTime: winner.HostTime}, true
}

// Reset clears the current window without emitting, used by the servo's
// soft reset on grandmaster switch.
func (f *LuckyFilter) Reset() {
	f.buf = f.buf[:0]
}

// Len returns how many raw points the current window has accumulated.
func (f *LuckyFilter) Len() int {
	return len(f.buf)
}
