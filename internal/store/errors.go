package store

import (
	"errors"

	"github.com/hyperengineering/inkwell/internal/types"
)

var (
	// ErrNotFound aliases the shared lookup sentinel.
	ErrNotFound     = types.ErrNotFound
	ErrMissingOwner = errors.New("project must be owned by exactly one of user or guest")
	ErrBadReorder   = errors.New("reorder ids do not match stored records")
)
