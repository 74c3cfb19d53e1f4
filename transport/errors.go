package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/jonwraymond/salesync/resilience"
)

// DefaultMessage is shown when neither the server nor the transport says more.
const DefaultMessage = "check your network connection"

// ErrInvalidRequest is returned for requests that cannot be built.
var ErrInvalidRequest = errors.New("transport: invalid request")

// Kind separates failures that never reached the server from server replies.
type Kind int

const (
	// KindTransport means no usable response arrived (offline, timeout, DNS).
	KindTransport Kind = iota + 1
	// KindServer means the server answered with a non-2xx status.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is the normalized failure of one request.
type Error struct {
	// Status is the HTTP status, or 0 when the request never got a response.
	Status int

	// Data is the response body, when there was one.
	Data json.RawMessage

	// Message is safe to show to the user.
	Message string

	Kind Kind

	// Err is the underlying transport error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("transport: %s (status %d)", e.Message, e.Status)
	}
	return "transport: " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// serverMessage reads {"message": "..."} or {"error": "..."} from a body.
func serverMessage(body json.RawMessage) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// transportMessage describes a failure in user terms. Raw network errors are
// not user-facing and yield "".
func transportMessage(status int, err error) string {
	switch {
	case status >= 300:
		if text := http.StatusText(status); text != "" {
			return fmt.Sprintf("request failed with status %d (%s)", status, text)
		}
		return fmt.Sprintf("request failed with status %d", status)
	case errors.Is(err, resilience.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "the request timed out"
	case errors.Is(err, resilience.ErrBulkheadFull):
		return "too many requests in progress"
	case errors.Is(err, context.Canceled):
		return "the request was cancelled"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "the request timed out"
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func serverError(status int, body json.RawMessage) *Error {
	return &Error{
		Status:  status,
		Data:    body,
		Message: firstNonEmpty(serverMessage(body), transportMessage(status, nil), DefaultMessage),
		Kind:    KindServer,
	}
}

func transportError(err error) *Error {
	return &Error{
		Message: firstNonEmpty(transportMessage(0, err), DefaultMessage),
		Kind:    KindTransport,
		Err:     err,
	}
}
