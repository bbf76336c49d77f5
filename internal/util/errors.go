package util

import "errors"

var (
	ErrNotFound          = errors.New("resource not found")
	ErrEvaluationClosed  = errors.New("evaluation window is closed")
	ErrQuotaExhausted    = errors.New("attempt quota exhausted")
	ErrQuotaBelowUsed    = errors.New("attempts allowed cannot be below attempts used")
	ErrAlreadyCompleted  = errors.New("attempt already completed")
	ErrNoActiveAttempt   = errors.New("no active attempt for participant")
	ErrInvalidMessage    = errors.New("invalid message payload")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNotEligible       = errors.New("participant not eligible for this stage")
	ErrSessionFinalizada = errors.New("session already finalized")
)
