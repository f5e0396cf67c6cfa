package services

import "fmt"

// BackendErrorKind classifies how an outbound call to the inference backend failed.
type BackendErrorKind int

const (
	// KindStatus: the backend answered with a non-2xx status.
	KindStatus BackendErrorKind = iota + 1
	// KindUnreachable: the request went out but no response came back.
	KindUnreachable
	// KindRequest: the request could not be built, or the reply is not JSON
	// or carries no message.
	KindRequest
)

func (k BackendErrorKind) String() string {
	switch k {
	case KindStatus:
		return "backend_status"
	case KindUnreachable:
		return "backend_unreachable"
	case KindRequest:
		return "request_error"
	default:
		return "unknown"
	}
}

// BackendError is returned by OllamaService.Chat for every failed call.
type BackendError struct {
	Kind       BackendErrorKind
	StatusCode int    // set for KindStatus
	Body       string // serialized backend body, set for KindStatus
	Err        error
}

func (e *BackendError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
	case KindUnreachable:
		return fmt.Sprintf("no response from backend: %v", e.Err)
	default:
		return fmt.Sprintf("request error: %v", e.Err)
	}
}

func (e *BackendError) Unwrap() error { return e.Err }
