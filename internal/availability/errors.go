package availability

import (
	"errors"
	"fmt"

	"github.com/wolfman30/vetclinic-platform/internal/clinic"
)

var (
	// ErrInvalidInput matches every ValidationError.
	ErrInvalidInput = errors.New("availability: invalid input")
	// ErrConfiguration is the family of clinic/practitioner lookup failures.
	ErrConfiguration = errors.New("availability: configuration error")
	// ErrClinicNotFound is returned when the clinic has no settings row.
	ErrClinicNotFound = fmt.Errorf("%w: %w", ErrConfiguration, clinic.ErrNotFound)
	// ErrPractitionerNotFound is returned when the requested practitioner is unknown or inactive.
	ErrPractitionerNotFound = fmt.Errorf("%w: practitioner not found", ErrConfiguration)
	// ErrDataFetch matches every DataFetchError.
	ErrDataFetch = errors.New("availability: reference data unavailable")
)

// ValidationError rejects a malformed query before any computation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("availability: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// DataFetchError reports that a whole required collection could not be read.
// The request must be retried; a partial result could show taken slots as free.
type DataFetchError struct {
	Collection string
	Err        error
}

func (e *DataFetchError) Error() string {
	return fmt.Sprintf("availability: load %s: %v", e.Collection, e.Err)
}

func (e *DataFetchError) Unwrap() error { return e.Err }

func (e *DataFetchError) Is(target error) bool {
	return target == ErrDataFetch
}

// Retryable is always true for fetch failures.
func (e *DataFetchError) Retryable() bool { return true }
