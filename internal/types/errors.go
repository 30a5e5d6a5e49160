package types

import "errors"

// ErrNotFound is the shared lookup sentinel. Local and remote storage both
// wrap it so the sync engine can distinguish a missing record from an I/O
// failure without depending on either package.
var ErrNotFound = errors.New("record not found")
