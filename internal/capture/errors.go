package capture

import "errors"

var (
	// ErrDuplicateKey signals an insert that lost the check-then-insert
	// race; the row already exists and the write may be treated as done.
	ErrDuplicateKey = errors.New("capture already recorded")
	// ErrNotFound signals that no capture matches the key.
	ErrNotFound = errors.New("capture not found")
)
