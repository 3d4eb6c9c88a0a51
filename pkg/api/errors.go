package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-go-golems/chatsync/pkg/chat"
)

var (
	ErrRequest         = errors.New("request failed")
	ErrTransport       = errors.New("transport error")
	ErrTimedOut        = errors.New("request timed out")
	ErrInvalidResponse = errors.New("invalid response")
)

// RequestError is returned when the server answered with a non-2xx status.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if e == nil {
		return ErrRequest.Error()
	}
	if detail := e.Detail(); detail != "" {
		return fmt.Sprintf("%s %s: server returned %d: %s", e.Method, e.Path, e.StatusCode, detail)
	}
	return fmt.Sprintf("%s %s: server returned %d", e.Method, e.Path, e.StatusCode)
}

func (e *RequestError) Is(target error) bool { return target == ErrRequest }

// Detail extracts a human readable message from the response body. It
// understands {"detail": ...} and {"error": ...} bodies and falls back to the
// trimmed raw body.
func (e *RequestError) Detail() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return ""
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(body), &parsed); err == nil {
		for _, key := range []string{"detail", "error", "message"} {
			switch v := parsed[key].(type) {
			case string:
				return v
			case map[string]interface{}:
				if msg, ok := v["message"].(string); ok {
					return msg
				}
			}
		}
	}
	return chat.TruncateText(body, maxDetailLength)
}

// maxDetailLength is counted in runes.
const maxDetailLength = 200

// TransportError wraps connectivity failures: refused connections, DNS errors,
// broken bodies.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	if e == nil {
		return ErrTransport.Error()
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, ErrTransport, e.Err)
}

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func (e *TransportError) Unwrap() error { return e.Err }
