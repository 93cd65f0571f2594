package vtable

import (
	"errors"
)

// Status is a result code reported back to the SQL engine, it mirrors the subset of
// sqlite result codes the adapter can produce.
type Status int

// enum of statuses
const (
	StatusOK    Status = 0
	StatusError Status = 1
	StatusNoMem Status = 7
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoMem:
		return "no memory"
	default:
		return "error"
	}
}

var (
	// ErrNoMemory returned when a table or cursor can't be allocated
	ErrNoMemory = errors.New("no memory")
	// ErrOutOfRange returned by column fetch for a column or row outside of materialized data
	ErrOutOfRange = errors.New("out of range")
)

// StatusOf maps an error to the engine status. nil is ok, ErrNoMemory is distinguishable
// from every other failure.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNoMemory):
		return StatusNoMem
	default:
		return StatusError
	}
}
