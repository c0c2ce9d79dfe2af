package services

import (
	"errors"

	apperrors "presalecli/internal/errors"
)

// Service errors. The run-registry and execution sentinels alias the
// shared definitions so the problem mapper recognizes them with
// errors.Is.
var (
	// Run registry errors
	ErrRunNotFound    = apperrors.ErrRunNotFound
	ErrNoCompletedRun = apperrors.ErrNoCompletedRun
	ErrInvalidRunID   = apperrors.ErrInvalidRunID

	// Execution errors
	ErrAnalysisRunning = apperrors.ErrAnalysisRunning

	// General errors
	ErrInvalidInput = errors.New("invalid input")
)
