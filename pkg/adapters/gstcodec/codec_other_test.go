//go:build !(linux && gstreamer)

package gstcodec

import (
	"errors"
	"testing"
)

func TestNew_NotSupported(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrPlatformNotSupported) {
		t.Errorf("expected ErrPlatformNotSupported, got %v", err)
	}
}
