package journal

import "errors"

// ErrNotFound indicates no launch exists for the session id.
var ErrNotFound = errors.New("journal: launch not found")
