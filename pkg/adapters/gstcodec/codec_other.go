//go:build !(linux && gstreamer)

package gstcodec

import "github.com/user/texdecode/pkg/ports"

func initGStreamer() error {
	return ErrPlatformNotSupported
}

func newCodec(p *Platform, mime string) (ports.Codec, error) {
	return nil, ErrPlatformNotSupported
}
