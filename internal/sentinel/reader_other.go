//go:build !linux && !windows

package sentinel

// stubReader is used on unsupported platforms.
type stubReader struct{}

func newPlatformReader() ForegroundReader {
	return stubReader{}
}

func (stubReader) Available() (bool, string) {
	return false, "foreground window detection not implemented for this platform"
}

func (stubReader) Foreground() (WindowInfo, error) {
	return WindowInfo{}, ErrNotAvailable
}
