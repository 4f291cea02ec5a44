package submission

import (
	"errors"
	"fmt"
)

// FallbackMessage is shown when the sink gave no usable message.
const FallbackMessage = "We couldn't submit your request. Please try again."

var (
	ErrTransport         = errors.New("submission: transport failure")
	ErrRejected          = errors.New("submission: rejected by sink")
	ErrMalformedResponse = errors.New("submission: malformed sink response")
	ErrNoEndpoint        = errors.New("submission: payload has no endpoint")
)

// TransportError reports that the sink could not be reached. Retrying the
// same payload is safe from the client's point of view.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("submission: post %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// RejectedError reports a non-2xx answer, or a 2xx answer the client could not
// read. Message is the sink's human readable message, when one was sent.
type RejectedError struct {
	Status  int
	Message string
	Err     error
}

func (e *RejectedError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("submission: sink answered %d: %s", e.Status, msg)
}

func (e *RejectedError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRejected, e.Err}
	}
	return []error{ErrRejected}
}

// UserMessage converts any submission error into the single line shown to the
// user: the sink's message when present, the fallback otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) && rejected.Message != "" {
		return rejected.Message
	}
	return FallbackMessage
}
