package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"fieldops/portal-sync/internal/constants"
)

// UpstreamError is a classified failure of an upstream API call
type UpstreamError struct {
	Code       string
	StatusCode int
	Message    string
	Details    string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

var retryableCodes = map[string]bool{
	constants.ErrCodeTimeout:             true,
	constants.ErrCodeRateLimited:         true,
	constants.ErrCodeNetworkError:        true,
	constants.ErrCodeUpstreamUnavailable: true,
}

// IsRetryable reports whether err is a transient upstream failure
func IsRetryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return retryableCodes[ue.Code]
	}
	return false
}

// IsNotFound reports whether the upstream object no longer exists
func IsNotFound(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Code == constants.ErrCodeNotFound
}

// ErrorCode returns the upstream error code of err, or "" for other errors
func ErrorCode(err error) string {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Code
	}
	return ""
}

func newError(code string, status int, details string, err error) *UpstreamError {
	return &UpstreamError{
		Code:       code,
		StatusCode: status,
		Message:    constants.GetErrorMessage(code),
		Details:    details,
		Err:        err,
	}
}

// classifyStatus maps a non-2xx response to an UpstreamError
func classifyStatus(status int, body []byte) *UpstreamError {
	var code string
	switch {
	case status == http.StatusTooManyRequests:
		code = constants.ErrCodeRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		code = constants.ErrCodeTimeout
	case status == http.StatusNotFound:
		code = constants.ErrCodeNotFound
	case status == http.StatusUnauthorized:
		code = constants.ErrCodeInvalidAPIKey
	case status == http.StatusForbidden:
		code = constants.ErrCodeAccessDenied
	case status >= 500:
		code = constants.ErrCodeUpstreamUnavailable
	case status >= 400:
		code = constants.ErrCodeBadRequest
	default:
		code = constants.ErrCodeUpstreamError
	}
	return newError(code, status, string(body), nil)
}

// classifyTransport maps a failed round trip to an UpstreamError.
// A per-request deadline is a TIMEOUT; cancellation of the caller's own
// context is returned as-is so it is never retried.
func classifyTransport(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(constants.ErrCodeTimeout, 0, "", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(constants.ErrCodeTimeout, 0, "", err)
	}
	return newError(constants.ErrCodeNetworkError, 0, "", err)
}
