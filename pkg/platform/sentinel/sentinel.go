package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and services translate them into domain errors:
//   - ErrNotFound: no row for the requested key
//   - ErrAlreadyUsed: a unique key (registration email) is taken
//   - ErrInvalidState: the row exists but the requested transition is not allowed
//   - ErrUnavailable: the backing service cannot be reached
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
