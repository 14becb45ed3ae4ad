package llm

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/genai"
)

// retryableError marks a failure worth another attempt.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// classify wraps transport failures, rate limiting and server errors as
// retryable. Client errors such as an invalid key are returned as-is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
			return &retryableError{err: err}
		}
		return err
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		if apiErrPtr.Code == http.StatusTooManyRequests || apiErrPtr.Code >= 500 {
			return &retryableError{err: err}
		}
		return err
	}
	// Anything else (DNS, reset connections, timeouts) is a transport problem.
	return &retryableError{err: err}
}
