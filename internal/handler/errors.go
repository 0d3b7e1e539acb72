package handler

import "fmt"

// MissingFieldError reports a required correlation field absent from an
// inbound message payload. It is fatal to the message; redelivery is
// the transport's decision.
type MissingFieldError struct {
	MessageType string
	Field       string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("unable to handle %s: required field %q missing", e.MessageType, e.Field)
}

// NotFoundError reports a referenced entity that does not exist.
// It is fatal to the message and never retried internally.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unable to handle event: %s %d does not exist", e.Entity, e.ID)
}
