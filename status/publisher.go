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
	"sync"

	log "github.com/sirupsen/logrus"
)

// Publisher guards the live Snapshot with a reader-writer lock. Writers
// build their replacement snapshot entirely outside the lock and only
// swap it in with a short Lock/Unlock; if building the replacement
// panics, the lock is never touched and the last known good snapshot
// keeps being served — the panic can't poison it.
type Publisher struct {
	mu       sync.RWMutex
	snapshot Snapshot
	log      *log.Entry
}

// NewPublisher returns a publisher seeded with a zero-value snapshot at
// the current protocol version.
func NewPublisher() *Publisher {
	return &Publisher{
		snapshot: Snapshot{Version: Version},
		log:      log.WithField("component", "status"),
	}
}

// Get returns the current snapshot.
func (p *Publisher) Get() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// Update computes a replacement snapshot from the current one via mutate
// and publishes it. mutate runs without holding the lock, so a panic
// inside it is recovered here and logged, and the snapshot already
// published is left untouched — readers never observe a half-built
// update or get stuck behind a dead writer.
func (p *Publisher) Update(mutate func(current Snapshot) Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorf("recovered from panic building status snapshot, serving last known good: %v", r)
		}
	}()

	current := p.Get()
	next := mutate(current)

	p.mu.Lock()
	p.snapshot = next
	p.mu.Unlock()
}
