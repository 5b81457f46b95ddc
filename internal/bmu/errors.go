package bmu

import (
	"fmt"
	"time"
)

// TransportError wraps a failed register read or write. It is fatal to the
// operation in progress but scoped to a single module during a scan.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports that the BMU never staged the requested module's data
// within the poll budget. Module IDs above the installed count manifest this
// way: the device simply never raises the ready flag.
type TimeoutError struct {
	ModuleID int
	Budget   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("module %d: no ready flag within %s", e.ModuleID, e.Budget)
}

// MalformedDataError reports a register buffer of unexpected size. The
// decoders refuse to index into short or over-length buffers.
type MalformedDataError struct {
	What     string
	Expected int
	Got      int
}

func (e *MalformedDataError) Error() string {
	return fmt.Sprintf("malformed %s: expected %d registers, got %d", e.What, e.Expected, e.Got)
}
