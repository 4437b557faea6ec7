package processor

import (
	"errors"

	apperrors "github.com/eventdetection/event-detection/pkg/errors"
)

// Summary counts the outcome of a batch run.
type Summary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

// skippable reports whether a per-item error should be logged and dropped
// rather than retried.
func skippable(err error) bool {
	return err != nil && (apperrors.IsInput(err) ||
		errors.Is(err, apperrors.ErrArticleNotFound) ||
		errors.Is(err, apperrors.ErrQueryNotFound))
}
