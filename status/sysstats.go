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

package status

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

var procStartTime = time.Now()

// ProcessHealth is diagnostic sugar the UI may ignore: none of it is a
// sync-state field, it just lets the UI notice a leaking or wedged
// daemon. Collected on demand, at the IPC thread's ~2 Hz poll rate, not
// on every PTP sample.
type ProcessHealth struct {
	RSSBytes       uint64
	GoroutineCount int
	UptimeSeconds  int64
}

// CollectProcessHealth reads the current process's RSS via gopsutil and
// pairs it with the Go runtime's goroutine count and process uptime.
func CollectProcessHealth() (ProcessHealth, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return ProcessHealth{}, err
	}
	var rss uint64
	if mem, err := proc.MemoryInfo(); err == nil {
		rss = mem.RSS
	}
	return ProcessHealth{
		RSSBytes:       rss,
		GoroutineCount: runtime.NumGoroutine(),
		UptimeSeconds:  int64(time.Since(procStartTime).Seconds()),
	}, nil
}
