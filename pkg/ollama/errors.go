package ollama

import (
	"errors"
	"fmt"
)

// The client surfaces a closed error set. There is no automatic retry here;
// callers decide between retrying, failing, and showing a recovery message.
var (
	// ErrServerNotRunning indicates the backend could not be reached at all.
	ErrServerNotRunning = errors.New("generation server is not running")

	// ErrInvalidResponse indicates the backend answered with a body that
	// does not match the API contract.
	ErrInvalidResponse = errors.New("invalid response from generation server")

	// ErrModelNotFound indicates the requested model is not installed.
	ErrModelNotFound = errors.New("model not found")
)

// ServerError is a non-2xx status from the backend.
type ServerError struct {
	Code int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("generation server returned status %d", e.Code)
}

// DecodeError wraps a JSON decoding failure of a backend response.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode generation response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NetworkError wraps a transport failure after the connection was
// established (timeouts, resets mid-stream).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error talking to generation server: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Suggestion maps a client error to a user-actionable recovery hint.
func Suggestion(err error) string {
	var serverErr *ServerError

	switch {
	case errors.Is(err, ErrServerNotRunning):
		return "Start the Ollama server (ollama serve) and try again"
	case errors.Is(err, ErrModelNotFound):
		return "Pull the model first (ollama pull <name>) or pick an installed model"
	case errors.As(err, &serverErr):
		return "The generation server reported an error; check its logs"
	case err != nil:
		return "Check the connection to the generation server and try again"
	default:
		return ""
	}
}
