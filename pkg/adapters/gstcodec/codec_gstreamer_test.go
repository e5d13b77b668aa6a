//go:build linux && gstreamer

package gstcodec

import (
	"errors"
	"testing"
	"time"

	"github.com/user/texdecode/pkg/mocks"
	"github.com/user/texdecode/pkg/ports"
)

func TestPlatform_UnsupportedMime(t *testing.T) {
	p, err := New(Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := p.CreateDecoderByType("video/av01"); !errors.Is(err, ErrUnsupportedMime) {
		t.Errorf("expected ErrUnsupportedMime, got %v", err)
	}
}

func TestCodec_ConfigureRejectsForeignWindow(t *testing.T) {
	p, err := New(Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	codec, err := p.CreateDecoderByType("video/avc")
	if err != nil {
		t.Fatalf("CreateDecoderByType failed: %v", err)
	}
	defer codec.Delete()

	format := p.NewMediaFormat()
	format.SetString(ports.KeyMime, "video/avc")
	format.SetInt32(ports.KeyWidth, 64)
	format.SetInt32(ports.KeyHeight, 64)

	if res := codec.Configure(format, &mocks.NativeWindow{ID: 7}); res != statusErrorInvalidParam {
		t.Errorf("expected invalid parameter, got %d", res)
	}
	if res := codec.Start(); res != statusErrorInvalidOp {
		t.Errorf("expected start before configure to fail, got %d", res)
	}
	if res := codec.DequeueInputBuffer(time.Millisecond); res != statusErrorInvalidOp {
		t.Errorf("expected dequeue before start to fail, got %d", res)
	}
}

func TestCodec_DeleteTwice(t *testing.T) {
	p, err := New(Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	codec, err := p.CreateDecoderByType("video/hevc")
	if err != nil {
		t.Fatalf("CreateDecoderByType failed: %v", err)
	}
	if res := codec.Delete(); res != statusOK {
		t.Errorf("expected first delete to succeed, got %d", res)
	}
	if res := codec.Delete(); res != statusErrorInvalidOp {
		t.Errorf("expected second delete to fail, got %d", res)
	}
}
