package shared

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrUpstream           = fmt.Errorf("upstream service error")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotFound           = fmt.Errorf("not found")
	ErrPartyNotFound      = fmt.Errorf("party not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrConflict           = fmt.Errorf("conflict")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// ErrorCode is the failure code of a callable endpoint.
type ErrorCode string

const (
	CodeInvalidArgument ErrorCode = "invalid-argument"
	CodeNotFound        ErrorCode = "not-found"
	CodeAlreadyExists   ErrorCode = "already-exists"
	CodeUnauthenticated ErrorCode = "unauthenticated"
	CodeUnknown         ErrorCode = "unknown"
	CodeInternal        ErrorCode = "internal"
)

// Status returns the wire form of the code (e.g. INVALID_ARGUMENT).
func (c ErrorCode) Status() string {
	return strings.ToUpper(strings.ReplaceAll(string(c), "-", "_"))
}

// HTTPStatus maps the code to the HTTP status used on the wire.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// sentinel returns the package error matching the code for [errors.Is].
func (c ErrorCode) sentinel() error {
	switch c {
	case CodeInvalidArgument:
		return ErrInvalidArgument
	case CodeUnauthenticated:
		return ErrNotAuthenticated
	case CodeNotFound:
		return ErrNotFound
	case CodeAlreadyExists:
		return ErrConflict
	case CodeUnknown:
		return ErrUpstream
	default:
		return nil
	}
}

// CallableError is the failure returned by callable endpoints.
//
// UpstreamStatus holds the HTTP status of the third-party response when the failure originated upstream.
type CallableError struct {
	Code           ErrorCode
	Message        string
	UpstreamStatus int
	Err            error
}

// NewCallableError creates a [CallableError] without a cause.
func NewCallableError(code ErrorCode, format string, args ...any) *CallableError {
	return &CallableError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// UpstreamError wraps a third-party failure, keeping its HTTP status.
func UpstreamError(status int, err error) *CallableError {
	return &CallableError{
		Code:           CodeUnknown,
		Message:        fmt.Sprintf("Spotify error code: %d", status),
		UpstreamStatus: status,
		Err:            err,
	}
}

func (e *CallableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CallableError) Unwrap() []error {
	errs := []error{}
	if s := e.Code.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// AsCallableError converts any error into a [CallableError], defaulting to [CodeInternal].
func AsCallableError(err error) *CallableError {
	if err == nil {
		return nil
	}

	var ce *CallableError
	if errors.As(err, &ce) {
		return ce
	}

	switch {
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrMissingArgument), errors.Is(err, ErrInvalidInput):
		return &CallableError{Code: CodeInvalidArgument, Message: err.Error(), Err: err}
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPartyNotFound), errors.Is(err, ErrTrackNotFound):
		return &CallableError{Code: CodeNotFound, Message: err.Error(), Err: err}
	case errors.Is(err, ErrConflict):
		return &CallableError{Code: CodeAlreadyExists, Message: err.Error(), Err: err}
	case errors.Is(err, ErrNotAuthenticated):
		return &CallableError{Code: CodeUnauthenticated, Message: err.Error(), Err: err}
	default:
		return &CallableError{Code: CodeInternal, Message: "internal error", Err: err}
	}
}

// CallableErrorBody is the wire form of a [CallableError].
type CallableErrorBody struct {
	Status  string                `json:"status"`
	Message string                `json:"message"`
	Details *CallableErrorDetails `json:"details,omitempty"`
}

// CallableErrorDetails carries optional context of a failure.
type CallableErrorDetails struct {
	UpstreamStatus int `json:"upstream_status,omitempty"`
}

// Body returns the wire form of e.
func (e *CallableError) Body() CallableErrorBody {
	body := CallableErrorBody{Status: e.Code.Status(), Message: e.Message}
	if e.UpstreamStatus != 0 {
		body.Details = &CallableErrorDetails{UpstreamStatus: e.UpstreamStatus}
	}
	return body
}

// Err converts a decoded wire error back into a [CallableError].
func (b CallableErrorBody) Err() *CallableError {
	ce := &CallableError{Code: ErrorCodeFromStatus(b.Status), Message: b.Message}
	if b.Details != nil {
		ce.UpstreamStatus = b.Details.UpstreamStatus
	}
	return ce
}

// ErrorCodeFromStatus parses the wire status (e.g. NOT_FOUND). Unknown values map to [CodeUnknown].
func ErrorCodeFromStatus(status string) ErrorCode {
	code := ErrorCode(strings.ToLower(strings.ReplaceAll(status, "_", "-")))
	switch code {
	case CodeInvalidArgument, CodeNotFound, CodeAlreadyExists, CodeUnauthenticated, CodeUnknown, CodeInternal:
		return code
	default:
		return CodeUnknown
	}
}
