package runtime

import (
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
)

// UnprocessableEventError marks a message that can never succeed, such as one
// whose metadata failed resolution. The poison queue middleware forwards these
// instead of retrying them.
type UnprocessableEventError struct {
	MessageUUID string
	Err         error
}

// NewUnprocessableEventError wraps err for msg. A nil err yields nil.
func NewUnprocessableEventError(msg *message.Message, err error) error {
	if err == nil {
		return nil
	}
	uuid := ""
	if msg != nil {
		uuid = msg.UUID
	}
	return &UnprocessableEventError{MessageUUID: uuid, Err: err}
}

func (e *UnprocessableEventError) Error() string {
	return fmt.Sprintf("unprocessable event %s: %v", e.MessageUUID, e.Err)
}

func (e *UnprocessableEventError) Unwrap() error {
	return e.Err
}

// IsUnprocessable reports whether err carries an *UnprocessableEventError.
func IsUnprocessable(err error) bool {
	var target *UnprocessableEventError
	return errors.As(err, &target)
}
