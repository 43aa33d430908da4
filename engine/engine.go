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

// Package engine wires the PTP, NTP, and IPC threads together and runs
// them as a single supervised group (spec §5).
package engine

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dantesync/dantesync/matcher"
	"github.com/dantesync/dantesync/ntp"
	"github.com/dantesync/dantesync/protocol"
	"github.com/dantesync/dantesync/receiver"
	"github.com/dantesync/dantesync/servo"
	"github.com/dantesync/dantesync/status"
)

// graceCheckInterval is how often the PTP thread checks whether the
// NTP_ONLY grace period has elapsed while waiting for the next packet.
const graceCheckInterval = time.Second

// Engine owns the three long-lived threads and the objects each reads or
// writes (spec §5's ownership rules): the PTP thread alone owns the
// matcher and servo; the status publisher is the only object shared
// across threads.
type Engine struct {
	receiver receiver.Source
	matcher  *matcher.Matcher
	servo    *servo.Servo

	ntpTracker *ntp.Tracker

	statusServer *status.Server
	publisher    *status.Publisher

	skipNTP bool

	log *log.Entry
}

// New assembles an Engine from its already-constructed collaborators.
// Any of ntpTracker/statusServer may be nil to disable that thread.
func New(src receiver.Source, m *matcher.Matcher, sv *servo.Servo, tracker *ntp.Tracker, srv *status.Server, pub *status.Publisher, skipNTP bool) *Engine {
	return &Engine{
		receiver:     src,
		matcher:      m,
		servo:        sv,
		ntpTracker:   tracker,
		statusServer: srv,
		publisher:    pub,
		skipNTP:      skipNTP,
		log:          log.WithField("component", "engine"),
	}
}

// Run starts all enabled threads and blocks until one exits or ctx is
// canceled, at which point it tears down the rest and returns the first
// error. A shutdown flag is implicit in ctx: canceling it, combined with
// closing the receiver and status listener, unblocks every blocking call
// within the target latency (spec §5).
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.runPTPThread(ctx)
	})

	if e.ntpTracker != nil && !e.skipNTP {
		g.Go(func() error {
			return e.ntpTracker.Run(ctx)
		})
	}

	if e.statusServer != nil {
		g.Go(func() error {
			return e.runIPCThread(ctx)
		})
	}

	return g.Wait()
}

// sampleResult is one outcome of a receiver.Next call, handed from the
// read goroutine to the PTP thread's select loop below.
type sampleResult struct {
	sample receiver.Sample
	err    error
}

// runPTPThread is the PTP thread: blocking receive, decode, match, servo
// update, synchronously and in wire-arrival order. It is the sole owner
// of the matcher and servo. CheckPacketGrace is driven off its own
// ticker rather than off packet arrival, since under total PTP silence
// (spec scenario S3, grandmaster stops sending) there is no packet
// arrival to piggyback the grace check on: a read goroutine feeds
// samples into a channel so this thread can select between "packet
// arrived" and "grace interval elapsed" without ever blocking inside
// receiver.Next itself.
func (e *Engine) runPTPThread(ctx context.Context) error {
	defer e.receiver.Close()

	go func() {
		<-ctx.Done()
		e.receiver.Close()
	}()

	results := make(chan sampleResult)
	go func() {
		for {
			sample, err := e.receiver.Next(ctx)
			select {
			case results <- sampleResult{sample: sample, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				var malformed *protocol.Malformed
				if !errors.As(err, &malformed) {
					return
				}
			}
		}
	}()

	ticker := time.NewTicker(graceCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			e.servo.CheckPacketGrace(time.Now())
			e.publishSnapshot()

		case r := <-results:
			if r.err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				var malformed *protocol.Malformed
				if errors.As(r.err, &malformed) {
					e.log.WithError(r.err).Debug("receiver: dropping malformed packet")
					continue
				}
				e.log.WithError(r.err).Error("receiver: unrecoverable socket error, exiting for supervisor restart")
				return r.err
			}

			e.handleSample(r.sample)
			e.publishSnapshot()
		}
	}
}

func (e *Engine) handleSample(sample receiver.Sample) {
	switch p := sample.Packet.(type) {
	case *protocol.Sync:
		gm := p.Header.GrandmasterID()
		e.matcher.AddSync(gm, p.Header.SequenceID, sample.HostTime)

	case *protocol.FollowUp:
		gm := p.Header.GrandmasterID()
		raw, ok := e.matcher.MatchFollowUp(gm, p, sample.HostTime)
		if !ok {
			return
		}
		e.servo.HandleRawSample(raw)
	}
}

func (e *Engine) publishSnapshot() {
	e.publisher.Update(func(cur status.Snapshot) status.Snapshot {
		cur.Version = status.Version
		cur.Mode = e.servo.ReportedMode()
		cur.IsLocked = e.servo.IsLocked()
		cur.SmoothedRateNSPerS = e.servo.SmoothedRateNSPerS()
		cur.AppliedPPM = e.servo.CurrentPPM()
		cur.GrandmasterID = string(e.servo.GrandmasterID())
		cur.LastPacketHostTime = e.servo.LastPacketHostTime()
		cur.PTPOffline = e.servo.Mode() == servo.ModeNTPOnly
		return cur
	})
}

// runIPCThread is the third thread: it blocks in accept(), serving
// status snapshots until ctx is canceled.
func (e *Engine) runIPCThread(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		e.statusServer.Close()
	}()
	return e.statusServer.Serve()
}
