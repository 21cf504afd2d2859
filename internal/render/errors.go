package render

import "errors"

var (
	// ErrAlreadyRendered signals that a concurrent run produced the
	// (city, date) video first; the losing render is discarded.
	ErrAlreadyRendered = errors.New("daily render already recorded")
	// ErrNotFound signals that no render exists for the (city, date).
	ErrNotFound = errors.New("daily render not found")
)
