//go:build !linux && !windows

package notify

type unavailableBackend struct{}

func newPlatformBackend() Backend {
	return unavailableBackend{}
}

func (unavailableBackend) Alert(Event) error {
	return ErrUnavailable
}
