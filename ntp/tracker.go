package ntp

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dantesync/dantesync/clock"
)

// TrackerConfig configures the NTP UTC tracker (spec §4.8).
type TrackerConfig struct {
	// Interval between queries. Defaults to 5 minutes.
	Interval time.Duration
	// StepThreshold is the minimum absolute offset that triggers a
	// step_wall call. Defaults to 500 microseconds.
	StepThreshold time.Duration
	// WarmupPeriod suppresses all ticks for this long after Run starts, to
	// avoid fighting the PTP bootstrap.
	WarmupPeriod time.Duration
	// FailureStreakThreshold is the number of consecutive query failures
	// before ntp_failed is raised. Defaults to 3.
	FailureStreakThreshold int
}

func (c TrackerConfig) withDefaults() TrackerConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.StepThreshold <= 0 {
		c.StepThreshold = 500 * time.Microsecond
	}
	if c.FailureStreakThreshold <= 0 {
		c.FailureStreakThreshold = 3
	}
	return c
}

// TrackerObserver receives tracker events for the status publisher.
type TrackerObserver interface {
	OnNTPTick(offset time.Duration, stepped bool, failed bool)
}

// Tracker is the independent loop that periodically queries an NTP source
// and steps the wall clock when its offset exceeds StepThreshold. It never
// touches clock frequency; that is the servo's exclusive concern.
type Tracker struct {
	cfg      TrackerConfig
	source   Source
	adapter  clock.Adapter
	observer TrackerObserver
	log      *logrus.Entry

	failureStreak int32
	failed        int32
}

// NewTracker constructs a Tracker. observer may be nil.
func NewTracker(cfg TrackerConfig, source Source, adapter clock.Adapter, observer TrackerObserver, log *logrus.Entry) *Tracker {
	return &Tracker{
		cfg:      cfg.withDefaults(),
		source:   source,
		adapter:  adapter,
		observer: observer,
		log:      log,
	}
}

// Failed reports whether the tracker is currently in a failure streak long
// enough to have raised ntp_failed.
func (t *Tracker) Failed() bool {
	return atomic.LoadInt32(&t.failed) != 0
}

// Run blocks, ticking every cfg.Interval, until ctx is cancelled. The first
// cfg.WarmupPeriod of ticks are skipped entirely.
func (t *Tracker) Run(ctx context.Context) error {
	start := time.Now()
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Since(start) < t.cfg.WarmupPeriod {
				t.log.Debug("skipping ntp tick during warmup")
				continue
			}
			t.tick(ctx)
		}
	}
}

func (t *Tracker) tick(ctx context.Context) {
	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	result, err := t.source.Query(queryCtx)
	if err != nil {
		streak := atomic.AddInt32(&t.failureStreak, 1)
		if int(streak) >= t.cfg.FailureStreakThreshold {
			atomic.StoreInt32(&t.failed, 1)
		}
		t.log.WithError(err).Warn("ntp query failed")
		if t.observer != nil {
			t.observer.OnNTPTick(0, false, t.Failed())
		}
		return
	}
	atomic.StoreInt32(&t.failureStreak, 0)
	atomic.StoreInt32(&t.failed, 0)

	stepped := false
	offset := result.ClockOffset
	if abs(offset) > t.cfg.StepThreshold {
		if err := t.adapter.StepWall(offset); err != nil {
			t.log.WithError(err).Warn("failed to step wall clock")
		} else {
			stepped = true
			t.log.WithField("offset", offset).Info("stepped wall clock from ntp")
		}
	}

	if t.observer != nil {
		t.observer.OnNTPTick(offset, stepped, false)
	}
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
