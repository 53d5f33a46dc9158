// Package errors holds the error taxonomy shared by every hgtload package.
//
// Callers match sentinels with Is; the constructors below wrap them with the
// field or item that failed.
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Tile decoding
	ErrMalformedFilename = errors.New("malformed tile filename")
	ErrOutOfBounds       = errors.New("out of bound line or col")
	ErrPointOutsideTile  = errors.New("point outside tile")
	ErrTileNotFound      = errors.New("tile not found")

	// Storage
	ErrIncompatibleStore = errors.New("store is not compatible with the provided settings")
	ErrUnknownDriver     = errors.New("unknown storage driver")
	ErrSessionClosed     = errors.New("storage session is closed")
	ErrFootprintExists   = errors.New("footprint already stored")

	// Worker pool
	ErrPoolFailure = errors.New("worker pool failure")

	// Fetching
	ErrDownloadFailed = errors.New("download failed")

	// Settings and manifests
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrMissingField   = errors.New("missing required field")
	ErrInvalidDataset = errors.New("invalid dataset")
	ErrInvalidName    = errors.New("invalid name")
)

// Aliases so callers need a single errors import.
var (
	Is   = errors.Is
	As   = errors.As
	New  = errors.New
	Join = errors.Join
)

// IsDecodeError reports whether err came from reading a tile.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrMalformedFilename) ||
		errors.Is(err, ErrOutOfBounds) ||
		errors.Is(err, ErrPointOutsideTile)
}

// IsValidation reports whether err rejects user input: configuration,
// flags, manifests or file names.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidDataset) ||
		errors.Is(err, ErrInvalidName)
}

// ============================================================================
// ProcessingError
// ============================================================================

// ProcessingError is what a pool worker logs when its processor fails on
// an item. Start only returns ErrPoolFailure.
type ProcessingError struct {
	Worker int
	Item   any
	Err    error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("worker %d: processing %v: %v", e.Worker, e.Item, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// NewProcessing wraps err for worker and item. A nil err returns nil.
func NewProcessing(worker int, item any, err error) error {
	if err == nil {
		return nil
	}
	return &ProcessingError{Worker: worker, Item: item, Err: err}
}

// ============================================================================
// Constructors
// ============================================================================

// NewValidation rejects field for reason.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField reports an unset required field.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewInvalidValue rejects value for field.
func NewInvalidValue(field string, value any, reason string) error {
	return fmt.Errorf("invalid %s %q: %s: %w", field, fmt.Sprint(value), reason, ErrInvalidConfig)
}
