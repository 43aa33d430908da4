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

// Package servo implements the rate-based mode controller: it turns a
// stream of matched Sync/FollowUp samples into frequency corrections
// applied through a clock.Adapter, tracking ACQ/PROD/LOCK/NANO/NTP_ONLY
// mode transitions and grandmaster switches along the way.
package servo

import (
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dantesync/dantesync/clock"
	"github.com/dantesync/dantesync/filter"
	"github.com/dantesync/dantesync/matcher"
	"github.com/dantesync/dantesync/protocol"
)

// Mode is one of the servo's top-level states.
type Mode uint8

const (
	ModeACQ Mode = iota
	ModeProd
	ModeLock
	ModeNTPOnly
)

func (m Mode) String() string {
	switch m {
	case ModeACQ:
		return "ACQ"
	case ModeProd:
		return "PROD"
	case ModeLock:
		return "LOCK"
	case ModeNTPOnly:
		return "NTP_ONLY"
	}
	return "UNKNOWN"
}

// nanoExitConsecutive is the hysteresis count: NANO sub-state is left only
// after this many consecutive samples land above the entry threshold.
const nanoExitConsecutive = 5

// Config holds the servo's tunable thresholds and gains. All fields
// default to the spec's documented values via DefaultConfig.
type Config struct {
	ProdThresholdNSPerS      float64
	LockThresholdNSPerS      float64
	PanicThresholdNSPerS     float64
	NanoEntryThresholdNSPerS float64

	CalibrationSamples int // K, consecutive samples required to advance mode
	WarmupSecs         time.Duration
	NTPOnlyGraceSecs   time.Duration

	MaxOverallPPM float64

	GainACQ, GainPROD, GainLOCK          float64
	MaxDeltaPPMACQ, MaxDeltaPPMPROD, MaxDeltaPPMLOCK float64

	WindowSize int   // lucky filter N
	MinDeltaNS int64 // lucky filter spread floor
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		ProdThresholdNSPerS:      20000,
		LockThresholdNSPerS:      5000,
		PanicThresholdNSPerS:     100000,
		NanoEntryThresholdNSPerS: 500,

		CalibrationSamples: 10,
		WarmupSecs:         10 * time.Second,
		NTPOnlyGraceSecs:   30 * time.Second,

		MaxOverallPPM: 100,

		GainACQ:  50,
		GainPROD: 10,
		GainLOCK: 1,

		MaxDeltaPPMACQ:  50,
		MaxDeltaPPMPROD: 10,
		MaxDeltaPPMLOCK: 0.5,

		WindowSize: filter.DefaultWindowSize,
		MinDeltaNS: filter.DefaultMinDeltaNS,
	}
}

// Servo owns the lucky-packet window, the drift-rate estimator, and the
// current mode. It is driven synchronously by the PTP thread; no other
// goroutine reads or writes it.
type Servo struct {
	cfg     Config
	adapter clock.Adapter

	window    *filter.LuckyFilter
	estimator *filter.DriftEstimator

	mode Mode
	nano bool

	currentPPM float64

	haveGrandmaster bool
	lastGrandmaster protocol.GrandmasterID

	modeEnteredAt      time.Time
	consecutiveBelowProd int
	consecutiveBelowLock int
	consecutiveAboveNano int

	lastPacketHostTime time.Time

	log *log.Entry
}

// New returns a servo in ACQ mode, ready to accept raw matcher samples.
func New(adapter clock.Adapter, cfg Config) *Servo {
	return &Servo{
		cfg:           cfg,
		adapter:       adapter,
		window:        filter.NewLuckyFilter(cfg.WindowSize, cfg.MinDeltaNS),
		estimator:     filter.NewDriftEstimator(),
		mode:          ModeACQ,
		modeEnteredAt: time.Now(),
		log:           log.WithField("component", "servo"),
	}
}

// Mode returns the servo's current top-level mode.
func (s *Servo) Mode() Mode {
	return s.mode
}

// ReportedMode returns "NANO" while the LOCK sub-state is active, else the
// same value as Mode().String().
func (s *Servo) ReportedMode() string {
	if s.mode == ModeLock && s.nano {
		return "NANO"
	}
	return s.mode.String()
}

// IsLocked reports whether the servo considers the clock disciplined
// (LOCK mode, with or without the NANO sub-state).
func (s *Servo) IsLocked() bool {
	return s.mode == ModeLock
}

// CurrentPPM returns the last applied frequency correction.
func (s *Servo) CurrentPPM() float64 {
	return s.currentPPM
}

// SmoothedRateNSPerS returns the estimator's current drift-rate estimate.
func (s *Servo) SmoothedRateNSPerS() float64 {
	return s.estimator.SmoothedRateNSPerS()
}

// GrandmasterID returns the grandmaster identity of the most recently
// accepted sample.
func (s *Servo) GrandmasterID() protocol.GrandmasterID {
	return s.lastGrandmaster
}

// LastPacketHostTime returns the host time of the most recent raw sample
// handed to the servo, used by CheckPacketGrace.
func (s *Servo) LastPacketHostTime() time.Time {
	return s.lastPacketHostTime
}

// HandleRawSample runs the per-sample update algorithm (spec §4.7) for one
// matched Sync/FollowUp pair. It performs the grandmaster-change check,
// feeds the lucky-packet window, and — once a window fills — updates the
// drift estimate and applies a frequency correction.
func (s *Servo) HandleRawSample(raw matcher.RawSample) {
	s.lastPacketHostTime = raw.ArrivalHost

	if s.mode == ModeNTPOnly {
		s.enterMode(ModeACQ)
	}

	if s.haveGrandmaster && raw.Grandmaster != s.lastGrandmaster {
		s.softReset()
	}
	s.lastGrandmaster = raw.Grandmaster
	s.haveGrandmaster = true

	denoised, ok := s.window.Add(filter.RawPoint{OffsetNS: raw.OffsetNS(), HostTime: raw.ArrivalHost})
	if !ok {
		return
	}
	s.applyUpdate(denoised)
}

// CheckPacketGrace transitions the servo to NTP_ONLY if no raw sample has
// arrived within the configured grace period. The caller (PTP thread or
// its supervising loop) invokes this on an idle timeout.
func (s *Servo) CheckPacketGrace(now time.Time) {
	if s.mode == ModeNTPOnly || s.lastPacketHostTime.IsZero() {
		return
	}
	if now.Sub(s.lastPacketHostTime) > s.cfg.NTPOnlyGraceSecs {
		s.enterMode(ModeNTPOnly)
	}
}

// softReset preserves current_ppm_correction but clears the drift EMA, the
// lucky-packet window, and every consecutive-sample counter, then
// re-enters ACQ. Triggered by a grandmaster switch so failover doesn't
// lose minutes of learned frequency.
func (s *Servo) softReset() {
	s.estimator.Reset()
	s.window.Reset()
	s.nano = false
	s.enterMode(ModeACQ)
	s.log.WithField("grandmaster", s.lastGrandmaster).Info("grandmaster switch, soft reset")
}

func (s *Servo) enterMode(m Mode) {
	s.mode = m
	s.modeEnteredAt = time.Now()
	s.consecutiveBelowProd = 0
	s.consecutiveBelowLock = 0
	s.consecutiveAboveNano = 0
}

func (s *Servo) warmedUp() bool {
	return time.Since(s.modeEnteredAt) >= s.cfg.WarmupSecs
}

func (s *Servo) gain() float64 {
	switch s.mode {
	case ModeACQ:
		return s.cfg.GainACQ
	case ModeProd:
		return s.cfg.GainPROD
	default:
		return s.cfg.GainLOCK
	}
}

func (s *Servo) maxDeltaPPM() float64 {
	switch s.mode {
	case ModeACQ:
		return s.cfg.MaxDeltaPPMACQ
	case ModeProd:
		return s.cfg.MaxDeltaPPMPROD
	default:
		return s.cfg.MaxDeltaPPMLOCK
	}
}

func (s *Servo) applyUpdate(d filter.DenoisedSample) {
	r := s.estimator.Update(d.OffsetNS, d.HostTime.UnixNano())
	absR := math.Abs(r)

	k := s.gain()
	deltaPPM := -k * r / 1000.0
	deltaPPM = clamp(deltaPPM, -s.maxDeltaPPM(), s.maxDeltaPPM())
	candidatePPM := clamp(s.currentPPM+deltaPPM, -s.cfg.MaxOverallPPM, s.cfg.MaxOverallPPM)

	// clock.Adapter takes parts-per-billion; currentPPM is kept in PPM.
	if err := s.adapter.AdjustFrequency(candidatePPM * 1000); err != nil {
		s.log.WithError(err).Warn("clock adjustment refused, correction skipped for this tick")
	} else {
		s.currentPPM = candidatePPM
	}

	s.evaluateTransitions(absR)
}

func (s *Servo) evaluateTransitions(absR float64) {
	switch s.mode {
	case ModeACQ:
		if absR < s.cfg.ProdThresholdNSPerS {
			s.consecutiveBelowProd++
		} else {
			s.consecutiveBelowProd = 0
		}
		if s.warmedUp() && s.consecutiveBelowProd >= s.cfg.CalibrationSamples {
			s.enterMode(ModeProd)
		}

	case ModeProd:
		if absR > s.cfg.PanicThresholdNSPerS {
			s.enterMode(ModeACQ)
			return
		}
		if absR < s.cfg.LockThresholdNSPerS {
			s.consecutiveBelowLock++
		} else {
			s.consecutiveBelowLock = 0
		}
		if s.consecutiveBelowLock >= s.cfg.CalibrationSamples {
			s.enterMode(ModeLock)
		}

	case ModeLock:
		if absR > s.cfg.PanicThresholdNSPerS {
			s.enterMode(ModeACQ)
			return
		}
		s.evaluateNano(absR)
	}
}

func (s *Servo) evaluateNano(absR float64) {
	if s.nano {
		if absR >= s.cfg.NanoEntryThresholdNSPerS {
			s.consecutiveAboveNano++
		} else {
			s.consecutiveAboveNano = 0
		}
		if s.consecutiveAboveNano >= nanoExitConsecutive {
			s.nano = false
			s.consecutiveAboveNano = 0
		}
		return
	}
	if absR < s.cfg.NanoEntryThresholdNSPerS {
		s.nano = true
		s.consecutiveAboveNano = 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
