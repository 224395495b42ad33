package engine

import (
	"errors"

	"github.com/Mhmod1992/workshop-engine/internal/ingest"
	"github.com/Mhmod1992/workshop-engine/internal/model"
	"github.com/Mhmod1992/workshop-engine/internal/remote"
)

// Re-export shared errors so callers compare against a single symbol.
var (
	ErrNotFound   = model.ErrNotFound
	ErrValidation = model.ErrValidation
	ErrNoSession  = model.ErrNoSession
)

// IsBackPressure reports whether err means the ingestion queue is full.
func IsBackPressure(err error) bool {
	var full *ingest.QueueFullError
	return errors.As(err, &full)
}

// IsIrrecoverable reports whether err is a remote error that retrying cannot
// fix (bad request, conflict, permission denied).
func IsIrrecoverable(err error) bool { return remote.IsIrrecoverable(err) }

// IsAuthError reports whether err is an authentication failure.
func IsAuthError(err error) bool { return remote.IsAuthError(err) }
