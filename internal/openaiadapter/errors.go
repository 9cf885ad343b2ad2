package openaiadapter

import "net/http"

// OpenAI error types used in ErrorResponse.Err.Type.
const (
	ErrorTypeInvalidRequest    = "invalid_request_error"
	ErrorTypeAuthentication    = "authentication_error"
	ErrorTypePermissionDenied  = "permission_denied"
	ErrorTypeRateLimit         = "rate_limit_error"
	ErrorTypeInsufficientQuota = "insufficient_quota"
	ErrorTypeServer            = "server_error"
	ErrorTypeAPI               = "api_error"
)

// NewErrorResponse builds an OpenAI-formatted error. Code and param are left null.
func NewErrorResponse(errType, message string) *ErrorResponse {
	return &ErrorResponse{
		Err: Error{
			Message: message,
			Type:    errType,
		},
	}
}

// HTTPStatus maps an OpenAI error type to the HTTP status code OpenAI uses for it.
func HTTPStatus(errType string) int {
	switch errType {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypePermissionDenied:
		return http.StatusForbidden
	case ErrorTypeRateLimit, ErrorTypeInsufficientQuota:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
