package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrServiceRequired      = sterrors.New("routeflow: event service is required")
	ErrHandlerRequired      = sterrors.New("routeflow: handler function is required")
	ErrConsumeQueueRequired = sterrors.New("routeflow: consume queue is required")
	ErrHandlerNameRequired  = sterrors.New("routeflow: handler name is required")
	ErrPublisherRequired    = sterrors.New("routeflow: publisher is required")
	ErrTopicRequired        = sterrors.New("routeflow: topic is required")
	ErrConfigRequired       = sterrors.New("routeflow: configuration is required")
	ErrLoggerRequired       = sterrors.New("routeflow: logger is required")
	ErrEventPayloadRequired = sterrors.New("routeflow: event payload is required")
	ErrPolicyRequired       = sterrors.New("routeflow: policy name is required")
	ErrDestinationRequired  = sterrors.New("routeflow: destination is required")
	ErrJobNameRequired      = sterrors.New("routeflow: scheduled job name is required")
	ErrJobScheduleRequired  = sterrors.New("routeflow: scheduled job needs exactly one of cron or interval")
)

// ConfigValidationError marks a configuration that failed validation.
type ConfigValidationError struct {
	Err error
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("routeflow: invalid configuration: %v", e.Err)
}

func (e *ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return &ConfigValidationError{Err: err}
}
