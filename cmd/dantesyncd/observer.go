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

package main

import (
	"time"

	"github.com/dantesync/dantesync/status"
)

// statusObserver bridges ntp.Tracker's events into the shared status
// snapshot, the NTP thread's only write path into cross-thread state.
type statusObserver struct {
	pub *status.Publisher
}

func (o statusObserver) OnNTPTick(offset time.Duration, stepped bool, failed bool) {
	o.pub.Update(func(cur status.Snapshot) status.Snapshot {
		cur.NTPLastOffsetNS = offset.Nanoseconds()
		cur.NTPFailed = failed
		return cur
	})
}
