//go:build !android

package mediacodec

func newPlatformBackend() (platformBackend, error) {
	return nil, ErrPlatformNotSupported
}
