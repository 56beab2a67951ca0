package errcode

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"imx662-go/drivers/imx662"
)

func TestMapDriverErr(t *testing.T) {
	tests := []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{&imx662.BusError{Op: "write", Reg: 0x3000, Attempts: 10, Err: errors.New("nack")}, BusError},
		{fmt.Errorf("set: %w", imx662.ErrUnsupportedDataRate), UnsupportedDataRate},
		{&imx662.LinkError{Side: imx662.LinkSerializer, Err: errors.New("lock")}, LinkPartner},
		{fmt.Errorf("%w: hflip", imx662.ErrBusy), Busy},
		{context.DeadlineExceeded, Timeout},
		{errors.New("something else"), Error},
	}
	for _, tc := range tests {
		if got := MapDriverErr(tc.err); got != tc.want {
			t.Errorf("MapDriverErr(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestOf(t *testing.T) {
	if Of(nil) != OK {
		t.Fatal("nil should be ok")
	}
	if Of(Busy) != Busy {
		t.Fatal("bare code not recognised")
	}
	wrapped := fmt.Errorf("outer: %w", &E{C: InvalidParams, Op: "set_ctrl"})
	if Of(wrapped) != InvalidParams {
		t.Fatalf("Of(wrapped E) = %q", Of(wrapped))
	}
	if Of(imx662.ErrChipID) != ChipID {
		t.Fatalf("Of(driver sentinel) = %q", Of(imx662.ErrChipID))
	}
}

func TestWrap(t *testing.T) {
	if Wrap("stream", nil) != nil {
		t.Fatal("Wrap(nil) != nil")
	}
	err := Wrap("stream", imx662.ErrNotPowered)
	if Of(err) != NotPowered || !errors.Is(err, imx662.ErrNotPowered) {
		t.Fatalf("Wrap = %v (%q)", err, Of(err))
	}
	if got := err.Error(); got != "stream: not_powered: imx662: not powered" {
		t.Fatalf("Error() = %q", got)
	}
}
