// Copyright (c) Andreas Eckleder 2018, 2024. All rights reserved.

// Package iec implements the host side of the bridge dialect: framed
// request/response over the serial line, an asynchronous debug stream,
// and the response demultiplexer that resolves one in-flight request at
// a time.
package iec

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every outcome produced by this package and the
// drive layer on top of it.
type ErrorKind int

const (
	// OK is the success sentinel; it is the kind of a nil error.
	OK ErrorKind = iota

	// ConnectionFailure: the bridge cannot be opened, configured or
	// understood (protocol mismatch, framing violation).
	ConnectionFailure

	// IECConnectionFailure: the bridge is fine but the IEC device
	// reported an error status.
	IECConnectionFailure

	// InvalidArgument: caller-supplied parameters out of range.
	InvalidArgument

	// EndOfFile: a channel or image returned EOI with no further data.
	EndOfFile
)

func (k ErrorKind) String() string {
	switch k {
	case OK:
		return "OK"
	case ConnectionFailure:
		return "CONNECTION_FAILURE"
	case IECConnectionFailure:
		return "IEC_CONNECTION_FAILURE"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case EndOfFile:
		return "END_OF_FILE"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Status is the error type carried by every failing operation: a kind
// plus a human-readable message. Messages originating from the bridge
// or the drive are passed through unchanged.
type Status struct {
	Kind    ErrorKind
	Message string
}

func (s *Status) Error() string {
	return s.Message
}

// Errorf builds a Status the way fmt.Errorf builds an error.
func Errorf(kind ErrorKind, format string, args ...interface{}) *Status {
	return &Status{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from an error. A nil error is OK. Errors
// that did not originate from a Status carry no kind of their own;
// they are transport-level and map to ConnectionFailure.
func KindOf(err error) ErrorKind {
	if err == nil {
		return OK
	}
	var s *Status
	if errors.As(err, &s) {
		return s.Kind
	}
	return ConnectionFailure
}
