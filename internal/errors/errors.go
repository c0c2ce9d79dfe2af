// Package errors defines the typed failure values of the analysis pipeline
// and the RFC 7807 rendering used by the HTTP surface.
//
// The taxonomy follows the pipeline's failure modes: dataset-level
// preconditions (missing columns, zero identifier overlap) are fatal typed
// errors the caller can match with errors.As; per-row defects never become
// errors at all, they are counted in diagnostics; insufficient peer samples
// degrade gracefully and only surface as a typed error from the direct
// relative-classification entry point.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UnlinkedDatasetsError is the fatal precondition failure raised when the
// record linker finds zero overlap between the two datasets, by identifier
// and by composite key alike. Downstream computation must not run: an
// all-zero join would silently produce nonsense.
type UnlinkedDatasetsError struct {
	ProjectIDs     int
	TransactionIDs int
}

func (e *UnlinkedDatasetsError) Error() string {
	return fmt.Sprintf(
		"datasets cannot be correlated: 0 of %d project identifiers matched any of %d transaction identifiers and no composite keys matched - check identifier formatting (whitespace, quoting, case) across source files",
		e.ProjectIDs, e.TransactionIDs)
}

// MissingColumnError is the fatal precondition failure for a dataset that
// lacks required columns.
type MissingColumnError struct {
	Table   string
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s dataset is missing required columns: %s", e.Table, strings.Join(e.Columns, ", "))
}

// InsufficientSampleError reports a city with too few peer regions for
// relative classification. The orchestrating classifier recovers from it by
// falling back to the absolute result; it reaches callers only when they
// request relative classification directly.
type InsufficientSampleError struct {
	City     string
	Regions  int
	Required int
}

func (e *InsufficientSampleError) Error() string {
	return fmt.Sprintf("city %q has %d regions, relative classification requires at least %d", e.City, e.Regions, e.Required)
}

// ErrRunNotFound is returned by the analysis service for unknown run IDs.
var ErrRunNotFound = errors.New("analysis run not found")

// ErrNoCompletedRun is returned when results are requested before any
// analysis run has completed.
var ErrNoCompletedRun = errors.New("no completed analysis run")

// ErrInvalidRunID is returned for run identifiers that are not UUIDs.
var ErrInvalidRunID = errors.New("invalid run id")

// ErrAnalysisRunning is returned when a run is requested while another is
// already in flight; the service executes one analysis at a time.
var ErrAnalysisRunning = errors.New("analysis already running")
