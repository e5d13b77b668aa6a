package decoder

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusError(t *testing.T) {
	err := fmt.Errorf("push: %w", statusError(ErrInputQueue, "queue input buffer", -10000))

	if !errors.Is(err, ErrInputQueue) {
		t.Error("expected wrapped StatusError to match its kind")
	}
	code, ok := StatusCode(err)
	if !ok || code != -10000 {
		t.Errorf("expected code -10000, got %d (%v)", code, ok)
	}
	want := "push: decoder: input queue failed: queue input buffer returned -10000"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestStatusCode_NoStatus(t *testing.T) {
	if _, ok := StatusCode(ErrDestination); ok {
		t.Error("expected no status code on a plain sentinel")
	}
}

func TestIsSetupError(t *testing.T) {
	tests := []struct {
		err   error
		setup bool
	}{
		{fmt.Errorf("%w: reader", ErrSurfaceAllocation), true},
		{ErrCodecCreation, true},
		{statusError(ErrConfiguration, "configure", -1), true},
		{statusError(ErrStart, "start", -1), true},
		{statusError(ErrOutputDequeue, "dequeue output buffer", -1), false},
		{&InputTooLargeError{Size: 2, Capacity: 1}, false},
		{ErrSessionClosed, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsSetupError(tt.err); got != tt.setup {
			t.Errorf("IsSetupError(%v) = %v, want %v", tt.err, got, tt.setup)
		}
	}
}
