package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Input errors: malformed tagged text, empty queries, desynchronised stems.
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmptyQuery        = errors.New("query has no expandable terms")
	ErrUnobservedSubword = errors.New("keyword phrase references an unobserved sub-word")

	ErrConfiguration = errors.New("invalid configuration")
	ErrComputation   = errors.New("computation error")

	ErrArticleNotFound = errors.New("article not found")
	ErrQueryNotFound   = errors.New("query not found")
	ErrInternal        = errors.New("internal error")
	ErrTimeout         = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// IsInput reports whether err belongs to the input-error family.
func IsInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyQuery) ||
		errors.Is(err, ErrUnobservedSubword)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrArticleNotFound), errors.Is(err, ErrQueryNotFound):
		return http.StatusNotFound
	case IsInput(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrComputation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
