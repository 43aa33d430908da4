//go:build windows

package clock

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// windowsTickPPB is the nominal adjustment unit: SetSystemTimeAdjustment takes
// a tick count in 100ns units added or removed per second-of-real-time, against
// a nominal 10,000,000 ticks/second clock interrupt rate. One tick of
// adjustment therefore corresponds to 1e9/1e7 = 100 ppb.
const windowsTickPPB = 100.0

// maxWindowsAdjustmentPPB is a conservative bound; Windows accepts a wide
// range but values beyond this indicate a servo bug rather than a legitimate
// correction.
const maxWindowsAdjustmentPPB = 500000.0

var (
	modkernel32                  = windows.NewLazySystemDLL("kernel32.dll")
	procSetSystemTimeAdjustment  = modkernel32.NewProc("SetSystemTimeAdjustment")
	procGetSystemTimeAdjustment  = modkernel32.NewProc("GetSystemTimeAdjustment")
	procSetSystemTimePreciseAsFT = modkernel32.NewProc("SetSystemTimePreciseAsFileTime")
)

// WindowsAdapter disciplines the system clock via SetSystemTimeAdjustment for
// frequency and SetSystemTimePreciseAsFileTime for phase steps. Both calls
// require SeSystemtimePrivilege, which the service holds when running under
// the Windows service control manager as LocalSystem.
type WindowsAdapter struct {
	mu         sync.Mutex
	currentPPB float64
}

// NewWindowsAdapter returns a ready-to-use adapter. It does not itself acquire
// privileges; the caller's service host is expected to run with
// SeSystemtimePrivilege already enabled.
func NewWindowsAdapter() (*WindowsAdapter, error) {
	return &WindowsAdapter{}, nil
}

// NowWall returns the current wall-clock (UTC) time.
func (a *WindowsAdapter) NowWall() time.Time {
	return time.Now().UTC()
}

// NowMonotonic returns a monotonic reading from the Go runtime, which on
// Windows is backed by QueryPerformanceCounter.
func (a *WindowsAdapter) NowMonotonic() time.Time {
	return time.Now()
}

// StepWall jumps the wall clock by delta using the "precise" file-time setter,
// which avoids the ~15.6ms granularity of the legacy SetSystemTime API.
func (a *WindowsAdapter) StepWall(delta time.Duration) error {
	target := time.Now().UTC().Add(delta)
	ft := windows.NsecToFiletime(target.UnixNano())
	r1, _, err := procSetSystemTimePreciseAsFT.Call(uintptr(ft.LowDateTime), uintptr(ft.HighDateTime))
	if r1 == 0 {
		return fmt.Errorf("SetSystemTimePreciseAsFileTime: %w", err)
	}
	return nil
}

// AdjustFrequency sets the clock interrupt adjustment via SetSystemTimeAdjustment,
// converting the requested ppb into the 100ns-tick units the API expects.
func (a *WindowsAdapter) AdjustFrequency(ppb float64) error {
	if ppb > maxWindowsAdjustmentPPB || ppb < -maxWindowsAdjustmentPPB {
		return fmt.Errorf("frequency adjustment %.3f ppb exceeds platform bound", ppb)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	// lpTimeAdjustment is the *current*, already-adjusted tick count; it is
	// not a fixed baseline and must not be read back into the next
	// adjustment, or each call would stack on top of the last one.
	// lpTimeIncrement is the fixed nominal tick rate the adjustment is
	// expressed relative to, and is what AdjustFrequency must rebase from
	// so that applying the same ppb twice is idempotent.
	var currentAdjustment uint32
	var nominalIncrement uint32
	var disabled uint32
	r1, _, err := procGetSystemTimeAdjustment.Call(
		uintptr(unsafe.Pointer(&currentAdjustment)),
		uintptr(unsafe.Pointer(&nominalIncrement)),
		uintptr(unsafe.Pointer(&disabled)),
	)
	if r1 == 0 {
		return fmt.Errorf("GetSystemTimeAdjustment: %w", err)
	}

	adjustmentTicks := int64(nominalIncrement) + int64(ppb/windowsTickPPB)
	if adjustmentTicks < 0 {
		adjustmentTicks = 0
	}

	r1, _, err = procSetSystemTimeAdjustment.Call(uintptr(uint32(adjustmentTicks)), 0)
	if r1 == 0 {
		return fmt.Errorf("SetSystemTimeAdjustment(%d): %w", adjustmentTicks, err)
	}
	a.currentPPB = ppb
	return nil
}

// FrequencyPPB returns the frequency offset last requested via AdjustFrequency.
// The Windows API does not expose a way to read back an equivalent ppb value
// from the raw adjustment ticks without knowing the nominal interrupt period
// at the time it was set, so we track the value we set ourselves.
func (a *WindowsAdapter) FrequencyPPB() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentPPB, nil
}

// MaxFreqPPB returns the platform's conservative adjustment bound.
func (a *WindowsAdapter) MaxFreqPPB() float64 {
	return maxWindowsAdjustmentPPB
}

// SetSynchronized is a no-op on Windows: there is no equivalent of Linux's
// TIME_OK/TIME_ERROR clock status to clear.
func (a *WindowsAdapter) SetSynchronized() error {
	return nil
}
