package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the stable category of a gateway error. Callers inspect the
// kind rather than the message; the boundary maps kinds to localized text.
type ErrorKind string

const (
	// KindValidation indicates a request rejected before any network call.
	KindValidation ErrorKind = "validation"

	// KindAssistantNotFound indicates an unknown assistant id.
	KindAssistantNotFound ErrorKind = "assistant_not_found"

	// KindAssistantNotSynchronized indicates an OpenAI-typed assistant with
	// no remote assistant id.
	KindAssistantNotSynchronized ErrorKind = "assistant_not_synchronized"

	// KindUnsupportedAppType indicates an unrecognized app type.
	KindUnsupportedAppType ErrorKind = "unsupported_app_type"

	// KindMissingCredential indicates an absent provider credential.
	KindMissingCredential ErrorKind = "missing_credential"

	// KindBackendUnavailable folds connect-refused, timeout, and
	// cancellation into one transport-failure category.
	KindBackendUnavailable ErrorKind = "backend_unavailable"

	// KindMalformedResponse indicates a backend reply with no usable shape.
	KindMalformedResponse ErrorKind = "malformed_backend_response"

	// KindSemanticFailure indicates a transport-successful reply carrying a
	// backend-signaled error.
	KindSemanticFailure ErrorKind = "semantic_failure"
)

// GatewayError is the canonical error produced by this core. Message text is
// stable and never embeds raw transport errors; the wrapped cause stays
// reachable through Unwrap for logging.
type GatewayError struct {
	Kind    ErrorKind
	Message string

	// Code is an optional backend-supplied numeric code used for HTTP
	// status mapping downstream. Zero means absent.
	Code int

	Err error
}

func (e *GatewayError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// HTTPStatusCode maps the error to a response status. A backend-supplied
// code wins when it is a plausible HTTP status.
func (e *GatewayError) HTTPStatusCode() int {
	if e.Code >= 400 && e.Code < 600 {
		return e.Code
	}
	switch e.Kind {
	case KindValidation, KindUnsupportedAppType, KindMissingCredential:
		return http.StatusBadRequest
	case KindAssistantNotFound:
		return http.StatusNotFound
	case KindAssistantNotSynchronized:
		return http.StatusConflict
	case KindBackendUnavailable:
		return http.StatusBadGateway
	case KindMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WithCode attaches a backend-supplied numeric code.
func (e *GatewayError) WithCode(code int) *GatewayError {
	e.Code = code
	return e
}

// WithCause attaches the underlying error without leaking its text into
// Message.
func (e *GatewayError) WithCause(err error) *GatewayError {
	e.Err = err
	return e
}

// NewError creates a gateway error of the given kind.
func NewError(kind ErrorKind, message string) *GatewayError {
	return &GatewayError{Kind: kind, Message: message}
}

// KindOf returns the kind of err, or an empty kind when err is not a
// GatewayError.
func KindOf(err error) ErrorKind {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// Convenience constructors

func ErrValidation(message string) *GatewayError {
	return NewError(KindValidation, message)
}

func ErrAssistantNotFound(appID string) *GatewayError {
	return NewError(KindAssistantNotFound, fmt.Sprintf("assistant %q not found", appID))
}

func ErrAssistantNotSynchronized(appID string) *GatewayError {
	return NewError(KindAssistantNotSynchronized,
		fmt.Sprintf("assistant %q has no remote assistant id; synchronize it first", appID))
}

func ErrUnsupportedAppType(appType string) *GatewayError {
	return NewError(KindUnsupportedAppType, fmt.Sprintf("unsupported app type %q", appType))
}

func ErrMissingCredential(provider string) *GatewayError {
	return NewError(KindMissingCredential, fmt.Sprintf("no credential configured for provider %q", provider))
}

func ErrBackendUnavailable(cause error) *GatewayError {
	return NewError(KindBackendUnavailable, "assistant backend unreachable").WithCause(cause)
}

func ErrMalformedResponse() *GatewayError {
	return NewError(KindMalformedResponse, "assistant backend returned an unrecognized document")
}

func ErrSemanticFailure(message string) *GatewayError {
	return NewError(KindSemanticFailure, message)
}
