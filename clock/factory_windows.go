//go:build windows

package clock

// NewPlatformAdapter returns the Windows clock.Adapter implementation.
func NewPlatformAdapter() (Adapter, error) {
	return NewWindowsAdapter()
}
