package inference

import (
	"context"
	"errors"
	"fmt"
)

// RoleUser is the only role the dish flow sends.
const RoleUser = "user"

var (
	// ErrEmptyResponse is returned when the service answered but the text was blank.
	ErrEmptyResponse = errors.New("inference: empty response")
	// ErrMalformedResponse is returned when the payload could not be interpreted.
	ErrMalformedResponse = errors.New("inference: malformed response")
)

// Message is a single chat turn. Images holds paths to files on local disk.
type Message struct {
	Role    string
	Content string
	Images  []string
}

// ChatRequest is one synchronous, non-streaming chat call.
type ChatRequest struct {
	Model    string
	Messages []Message
}

// ChatResponse is the normalised reply of the service.
type ChatResponse struct {
	Model string
	Text  string
}

// Client exposes the subset of functionality used by the dish query flow.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// StatusError reports a non-2xx answer from the service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("inference: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("inference: unexpected status %d: %s", e.StatusCode, e.Body)
}
