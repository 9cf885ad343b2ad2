package datastream

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/florianilch/vela-proxy/internal/openaiadapter"
)

// maxErrorBodyBytes bounds how much of an upstream error body is echoed to the client.
const maxErrorBodyBytes = 4 << 10

// toChatCompletionError converts any error into OpenAI-compatible error format.
// Errors that already are ErrorResponses pass through; everything else (network,
// timeouts) is wrapped as generic server_error.
func toChatCompletionError(err error) *openaiadapter.ErrorResponse {
	if err == nil {
		return nil
	}

	var errResp *openaiadapter.ErrorResponse
	if errors.As(err, &errResp) {
		return errResp
	}

	return openaiadapter.NewErrorResponse(openaiadapter.ErrorTypeServer, err.Error())
}

// upstreamStatusError builds the error returned for a non-success upstream status.
func upstreamStatusError(statusCode int, body []byte) *openaiadapter.ErrorResponse {
	message := fmt.Sprintf("upstream error: %d", statusCode)
	if details := strings.TrimSpace(string(body)); details != "" {
		message += ": " + details
	}
	return openaiadapter.NewErrorResponse(mapUpstreamStatus(statusCode), message)
}

// mapUpstreamStatus translates upstream HTTP status codes to OpenAI-compatible error types.
func mapUpstreamStatus(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return openaiadapter.ErrorTypeInvalidRequest
	case http.StatusUnauthorized:
		return openaiadapter.ErrorTypeAuthentication
	case http.StatusForbidden:
		return openaiadapter.ErrorTypePermissionDenied
	case http.StatusTooManyRequests:
		return openaiadapter.ErrorTypeRateLimit
	default:
		// Unknown statuses default to api_error for safe handling
		return openaiadapter.ErrorTypeAPI
	}
}
