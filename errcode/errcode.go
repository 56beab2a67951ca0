package errcode

import (
	"context"
	"errors"

	"imx662-go/drivers/imx662"
)

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	Busy           Code = "busy"
	Unsupported    Code = "unsupported"
	InvalidParams  Code = "invalid_params"
	InvalidPayload Code = "invalid_payload"
	InvalidTopic   Code = "invalid_topic"
	UnknownDevice  Code = "unknown_device"
	UnknownVerb    Code = "unknown_verb"
	NotReady       Code = "not_ready"
	Timeout        Code = "timeout"

	// Sensor-facing codes.
	BusError            Code = "bus_error"
	UnsupportedFormat   Code = "unsupported_format"
	UnsupportedDataRate Code = "unsupported_data_rate"
	LinkPartner         Code = "link_partner_error"
	UnknownControl      Code = "unknown_control"
	ReadOnly            Code = "read_only"
	ChipID              Code = "chip_id_mismatch"
	NotPowered          Code = "not_powered"

	Error Code = "error" // generic fallback
)

// E wraps a code with an operation, a message and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap builds an *E whose code is derived from err.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: MapDriverErr(err), Op: op, Msg: err.Error(), Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	return MapDriverErr(err)
}

var driverCodes = []struct {
	err  error
	code Code
}{
	{imx662.ErrBus, BusError},
	{imx662.ErrUnsupportedFormat, UnsupportedFormat},
	{imx662.ErrUnsupportedDataRate, UnsupportedDataRate},
	{imx662.ErrLinkPartner, LinkPartner},
	{imx662.ErrBusy, Busy},
	{imx662.ErrUnknownControl, UnknownControl},
	{imx662.ErrReadOnly, ReadOnly},
	{imx662.ErrChipID, ChipID},
	{imx662.ErrNotPowered, NotPowered},
	{context.DeadlineExceeded, Timeout},
}

// MapDriverErr maps sensor driver errors to a Code.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	for _, dc := range driverCodes {
		if errors.Is(err, dc.err) {
			return dc.code
		}
	}
	return Error
}
