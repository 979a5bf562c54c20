package errors

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyHierarchy     = errors.New("nothing to export")
	ErrJobNotFound        = errors.New("export job not found")
	ErrArtifactNotReady   = errors.New("export artifact not ready")
	ErrExternalAPIError   = errors.New("assessment service error")
	ErrAuthenticationFail = errors.New("authentication failed")
	ErrInvalidProxyURL    = errors.New("invalid proxy url")
)

// DropError names the broken link that excluded a grading group from the
// export hierarchy. It is logged, never returned across the pipeline
// boundary.
type DropError struct {
	GroupID int64
	Link    string
}

func (e DropError) Error() string {
	return fmt.Sprintf("grading group %d dropped: missing %s", e.GroupID, e.Link)
}

type RetryableError struct {
	Err     error
	Message string
}

func (e RetryableError) Error() string {
	return fmt.Sprintf("retryable error: %s - %s", e.Message, e.Err.Error())
}

func (e RetryableError) Unwrap() error {
	return e.Err
}

func NewRetryableError(err error, message string) error {
	return RetryableError{
		Err:     err,
		Message: message,
	}
}
