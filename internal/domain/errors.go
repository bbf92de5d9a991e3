package domain

import "errors"

// ErrNotFound is returned by repositories and the engine when a bot or
// position with the requested ID does not exist.
var ErrNotFound = errors.New("not found")
