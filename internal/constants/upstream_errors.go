package constants

// Upstream error codes. The retryable set is fixed; see upstream.IsRetryable.
const (
	ErrCodeTimeout             = "TIMEOUT"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeNetworkError        = "NETWORK_ERROR"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
)

const (
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInvalidAPIKey   = "INVALID_API_KEY"
	ErrCodeAccessDenied    = "ACCESS_DENIED"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeInvalidResponse = "INVALID_RESPONSE"
	ErrCodeUpstreamError   = "UPSTREAM_ERROR"
)

var UpstreamErrorMessages = map[string]string{
	ErrCodeTimeout:             "The upstream request timed out",
	ErrCodeRateLimited:         "Upstream rate limit exceeded. Please try again later",
	ErrCodeNetworkError:        "Unable to connect to the upstream system",
	ErrCodeUpstreamUnavailable: "The upstream system is temporarily unavailable",
	ErrCodeNotFound:            "The requested object was not found upstream",
	ErrCodeInvalidAPIKey:       "The upstream credentials are invalid or have been revoked",
	ErrCodeAccessDenied:        "The upstream credentials lack access to this resource",
	ErrCodeBadRequest:          "The upstream system rejected the request",
	ErrCodeInvalidResponse:     "The upstream response could not be decoded",
	ErrCodeUpstreamError:       "The upstream system returned an unexpected error",
}

// GetErrorMessage returns the human-readable message for an error code
func GetErrorMessage(code string) string {
	if msg, exists := UpstreamErrorMessages[code]; exists {
		return msg
	}
	return "An unknown error occurred"
}
