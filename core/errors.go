package core

import "errors"

// Common errors
var (
	ErrValidation       = errors.New("invalid input")
	ErrInvalidDimension = errors.New("invalid vector dimension")
	ErrEmptyQuery       = errors.New("query carries neither text nor image")
	ErrZeroWeights      = errors.New("query weights are both zero")
	ErrProductNotFound  = errors.New("product not found")
	ErrEmbeddingFailure = errors.New("embedding service failure")
	ErrIndexUnavailable = errors.New("vector index unavailable")
	ErrCollaborator     = errors.New("upstream collaborator failure")
	ErrSessionBusy      = errors.New("session busy")
	ErrSessionNotFound  = errors.New("session not found")
)

// Retryable reports whether the caller may retry the failed operation as-is.
func Retryable(err error) bool {
	return errors.Is(err, ErrSessionBusy) || errors.Is(err, ErrCollaborator)
}
