package imx662

import (
	"errors"
	"fmt"
)

var (
	ErrBus                 = errors.New("imx662: bus error")
	ErrUnsupportedFormat   = errors.New("imx662: unsupported format")
	ErrUnsupportedDataRate = errors.New("imx662: unsupported data rate")
	ErrLinkPartner         = errors.New("imx662: link partner error")
	ErrBusy                = errors.New("imx662: busy")
	ErrUnknownControl      = errors.New("imx662: unknown control")
	ErrReadOnly            = errors.New("imx662: read-only control")
	ErrChipID              = errors.New("imx662: unexpected chip id")
	ErrNotPowered          = errors.New("imx662: not powered")
)

// BusError is a transfer that still failed after every retry.
type BusError struct {
	Op       string // "read" or "write"
	Reg      uint16
	Attempts int
	Err      error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("imx662: %s 0x%04X failed after %d attempts: %v", e.Op, e.Reg, e.Attempts, e.Err)
}

func (e *BusError) Unwrap() error        { return e.Err }
func (e *BusError) Is(target error) bool { return target == ErrBus }

// LinkSide names the half of a serializer/deserializer pair.
type LinkSide uint8

const (
	LinkSerializer LinkSide = iota
	LinkDeserializer
)

func (s LinkSide) String() string {
	if s == LinkDeserializer {
		return "deserializer"
	}
	return "serializer"
}

// LinkError is returned by Link implementations to say which side failed.
// Deserializer failures do not stop sensor bring-up; serializer failures do.
type LinkError struct {
	Side LinkSide
	Err  error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("imx662: %s: %v", e.Side, e.Err)
}

func (e *LinkError) Unwrap() error        { return e.Err }
func (e *LinkError) Is(target error) bool { return target == ErrLinkPartner }
