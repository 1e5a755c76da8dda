package errcode

import (
	"errors"

	"touchcode-go/drivers/tty6955"
)

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK                Code = "ok"
	Busy              Code = "busy"
	Unsupported       Code = "unsupported"
	InvalidParams     Code = "invalid_params"
	InvalidPayload    Code = "invalid_payload"
	UnknownCapability Code = "unknown_capability"
	HALNotReady       Code = "hal_not_ready"
	InvalidTopic      Code = "invalid_topic"

	BusError      Code = "bus_error"
	NotCalibrated Code = "not_calibrated"
	UnknownBus    Code = "unknown_bus"
	BusInUse      Code = "bus_in_use"
	Timeout       Code = "timeout"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// MapDriverErr maps low-level driver errors to a Code. Argument-validation
// sentinels become InvalidParams; calibration-in-progress keeps its own code;
// anything else from a transaction is a bus failure.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	switch {
	case errors.Is(err, tty6955.ErrInvalidChannel),
		errors.Is(err, tty6955.ErrInvalidPad),
		errors.Is(err, tty6955.ErrInvalidThreshold),
		errors.Is(err, tty6955.ErrInvalidKAT),
		errors.Is(err, tty6955.ErrTooManySliderPads),
		errors.Is(err, tty6955.ErrInvalidSliderPads),
		errors.Is(err, tty6955.ErrInvalidAutoReset),
		errors.Is(err, tty6955.ErrInvalidKeyCount):
		return InvalidParams
	case errors.Is(err, tty6955.ErrNotCalibrated):
		return NotCalibrated
	}
	return BusError
}
