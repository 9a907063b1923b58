package domain

import "errors"

var (
	// ErrQuestionNotFound indicates a question id is absent from the catalog.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrCatalogEmpty indicates the catalog has no questions to select from.
	ErrCatalogEmpty = errors.New("question catalog is empty")
	// ErrInvalidGuess indicates a guessed percentage outside [0, 100].
	ErrInvalidGuess = errors.New("guess must be between 0 and 100")
	// ErrMissingFingerprint indicates a vote without a deduplication token.
	ErrMissingFingerprint = errors.New("fingerprint is required")
)
