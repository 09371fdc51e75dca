package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found.
	ErrJobNotFound = errors.New("job not found")

	// ErrCampaignNotFound is returned when a campaign cannot be found.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrLeadNotFound is returned when a lead cannot be found.
	ErrLeadNotFound = errors.New("lead not found")

	// ErrMessageNotFound is returned when a message cannot be found.
	ErrMessageNotFound = errors.New("message not found")

	// ErrJobNotOwned is returned when a worker tries to finalize a job
	// claimed by a different worker.
	ErrJobNotOwned = errors.New("job is not owned by this worker")

	// ErrInvalidPayload is returned when a job payload fails validation.
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrMaxRetriesExceeded marks a job that has exhausted its retry
	// budget and moved to terminal failed.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// RetryableError wraps a transient executor failure that should be
// rescheduled with backoff rather than terminally failed.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError wraps err as retryable.
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err or anything it wraps is a
// RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
