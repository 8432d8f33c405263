package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestFrameClone(t *testing.T) {
	orig := Frame{Data: []byte{1, 2, 3}, Interface: 2}
	clone := orig.Clone()

	clone.Data[0] = 0xFF
	if orig.Data[0] != 1 {
		t.Errorf("clone shares data with original: orig[0]=%d", orig.Data[0])
	}
	if clone.Interface != 2 {
		t.Errorf("expected Interface=2, got %d", clone.Interface)
	}
	if clone.Len() != 3 {
		t.Errorf("expected Len=3, got %d", clone.Len())
	}
}

func TestFrameZeroValue(t *testing.T) {
	var f Frame
	if f.Len() != 0 {
		t.Errorf("expected Len=0, got %d", f.Len())
	}
	if !f.Timestamp.IsZero() {
		t.Errorf("expected zero Timestamp, got %v", f.Timestamp)
	}
}

func TestSentinelErrorsWrap(t *testing.T) {
	sentinels := []error{
		ErrPacketTooShort,
		ErrUnsupportedProto,
		ErrRouteMalformed,
		ErrInterfaceUnknown,
		ErrSendFailed,
		ErrDeviceClosed,
		ErrConfigInvalid,
	}

	for _, sentinel := range sentinels {
		t.Run(sentinel.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", sentinel)
			if !errors.Is(wrapped, sentinel) {
				t.Errorf("errors.Is failed for %v", sentinel)
			}
		})
	}
}
