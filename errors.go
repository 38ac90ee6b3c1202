package mwacal

import (
	"errors"
	"fmt"
)

// TileDB persistence sentinels: one sentinel per failure site, joined with
// errors.Join at the call site so the wrapped TileDB error is never
// swallowed.
var (
	ErrCreateSolutionsTdb = errors.New("error creating solutions tiledb array")
	ErrWriteSolutionsTdb  = errors.New("error writing solutions tiledb array")
	ErrCreateModelVisTdb  = errors.New("error creating model visibility tiledb array")
	ErrWriteModelVisTdb   = errors.New("error writing model visibility tiledb array")
	ErrCreateAttributeTdb = errors.New("error creating attribute for tiledb array")
	ErrCreateSchemaTdb    = errors.New("error creating tiledb schema")
	ErrCreateDimTdb       = errors.New("error creating tiledb dimension")
	ErrAddFilters         = errors.New("error adding filter to filter list")
	ErrDtype              = errors.New("error slice datatype is unexpected")
)

// Error kinds from the error-handling design. Each is a sentinel so callers
// can errors.Is against it; the richer variants below carry the numeric
// context a caller needs to report the failure precisely.
var (
	ErrInputMalformed          = errors.New("input malformed")
	ErrBeamQueryFailed         = errors.New("beam query failed")
	ErrInsufficientMemory      = errors.New("insufficient memory")
	ErrTooFewSources           = errors.New("too few sources")
	ErrInvalidCalibrationInput = errors.New("invalid calibration input")
	ErrAccelerator             = errors.New("accelerator error")
	ErrNumericalFailure        = errors.New("numerical failure")
)

// TooFewSourcesError carries the counts behind ErrTooFewSources so a caller
// can report precisely how short the vetoed list fell.
type TooFewSourcesError struct {
	Requested int
	Available int
}

func (e *TooFewSourcesError) Error() string {
	return fmt.Sprintf("%s: requested %d, only %d available", ErrTooFewSources, e.Requested, e.Available)
}

func (e *TooFewSourcesError) Unwrap() error { return ErrTooFewSources }

// InsufficientMemoryError carries the byte counts behind ErrInsufficientMemory:
// the single allocation that was refused, and the total working set it was
// part of.
type InsufficientMemoryError struct {
	RequestedBytes uint64
	TotalBytes     uint64
}

func (e *InsufficientMemoryError) Error() string {
	return fmt.Sprintf("%s: requested %d bytes of %d total working set", ErrInsufficientMemory, e.RequestedBytes, e.TotalBytes)
}

func (e *InsufficientMemoryError) Unwrap() error { return ErrInsufficientMemory }

// InvalidCalibrationInputError records why a calibration request couldn't
// proceed, e.g. fewer than five unflagged antennas or a timestep index out
// of range.
type InvalidCalibrationInputError struct {
	Reason string
}

func (e *InvalidCalibrationInputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidCalibrationInput, e.Reason)
}

func (e *InvalidCalibrationInputError) Unwrap() error { return ErrInvalidCalibrationInput }

// AcceleratorError carries an opaque status string from an accelerated
// predictor path, should one ever be compiled in.
type AcceleratorError struct {
	Status string
}

func (e *AcceleratorError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAccelerator, e.Status)
}

func (e *AcceleratorError) Unwrap() error { return ErrAccelerator }
