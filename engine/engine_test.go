package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dantesync/dantesync/clock"
	"github.com/dantesync/dantesync/matcher"
	"github.com/dantesync/dantesync/protocol"
	"github.com/dantesync/dantesync/receiver"
	"github.com/dantesync/dantesync/servo"
	"github.com/dantesync/dantesync/status"
)

type fakeClockAdapter struct{}

func (fakeClockAdapter) NowWall() time.Time              { return time.Now() }
func (fakeClockAdapter) NowMonotonic() time.Time         { return time.Now() }
func (fakeClockAdapter) StepWall(time.Duration) error    { return nil }
func (fakeClockAdapter) AdjustFrequency(float64) error   { return nil }
func (fakeClockAdapter) FrequencyPPB() (float64, error)  { return 0, nil }
func (fakeClockAdapter) MaxFreqPPB() float64             { return 500000 }
func (fakeClockAdapter) SetSynchronized() error          { return nil }

var _ clock.Adapter = fakeClockAdapter{}

type scriptedSource struct {
	samples []receiver.Sample
	idx     int
}

func (s *scriptedSource) Next(ctx context.Context) (receiver.Sample, error) {
	if s.idx >= len(s.samples) {
		<-ctx.Done()
		return receiver.Sample{}, ctx.Err()
	}
	sample := s.samples[s.idx]
	s.idx++
	return sample, nil
}
func (s *scriptedSource) Close() error { return nil }

func makeSyncFollowUp(gmUUID [6]byte, port, seq uint16, t0 time.Time) (receiver.Sample, receiver.Sample) {
	header := protocol.Header{VersionPTP: protocol.Version, SourceUUID: gmUUID, SourcePortID: port, SequenceID: seq}
	sync := &protocol.Sync{Header: header}
	header.MessageType_ = uint8(protocol.MessageFollowUp)
	followUp := &protocol.FollowUp{Header: header, FollowUpBody: protocol.FollowUpBody{
		AssociatedSequenceID:   seq,
		PreciseOriginTimestamp: protocol.Timestamp{Seconds: 0, Nanoseconds: 0},
	}}
	return receiver.Sample{Packet: sync, HostTime: t0},
		receiver.Sample{Packet: followUp, HostTime: t0.Add(time.Millisecond)}
}

func TestEngineRoutesMatchedSamplesToServo(t *testing.T) {
	var samples []receiver.Sample
	base := time.Now()
	gmUUID := [6]byte{1, 2, 3, 4, 5, 6}
	for i := 0; i < 3; i++ {
		s, f := makeSyncFollowUp(gmUUID, 1, uint16(i), base.Add(time.Duration(i)*time.Second))
		samples = append(samples, s, f)
	}
	src := &scriptedSource{samples: samples}

	m := matcher.New(500 * time.Millisecond)
	sv := servo.New(fakeClockAdapter{}, servo.DefaultConfig())
	pub := status.NewPublisher()

	e := New(src, m, sv, nil, nil, pub, true)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = e.Run(ctx)

	require.NotEmpty(t, sv.GrandmasterID())
	snap := pub.Get()
	require.NotEmpty(t, snap.GrandmasterID)
}

func TestEngineShutdownRespectsContextCancellation(t *testing.T) {
	src := &scriptedSource{}
	m := matcher.New(500 * time.Millisecond)
	sv := servo.New(fakeClockAdapter{}, servo.DefaultConfig())
	pub := status.NewPublisher()

	e := New(src, m, sv, nil, nil, pub, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not shut down within expected latency")
	}
}
