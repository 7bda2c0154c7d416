//
//
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/o-litvinchuk-dev/lab3/internal/ingest"
	"github.com/o-litvinchuk-dev/lab3/internal/record"
	"github.com/o-litvinchuk-dev/lab3/internal/storage"
)

// APIError represents an API-layer error with HTTP status code.
type APIError struct {
	Code       string
	Message    string
	Details    interface{}
	StatusCode int
}

// API error codes for transport conditions
var (
	ErrBadRequest = errors.New("BAD_REQUEST")
)

// ToAPIError converts an error to an API error with HTTP status code and JSON body.
func ToAPIError(err error) (int, []byte) {
	if err == nil {
		return http.StatusOK, nil
	}
	status, response := toAPIResponse(err)
	return status, marshalResponse(response)
}

// toAPIResponse maps err to a status and an error envelope.
func toAPIResponse(err error) (int, *Response) {
	var apiErr *APIError
	var verrs record.ValidationErrors
	var storageErr *storage.Error

	// Check if it's already an API error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, ErrorResponse(apiErr.Code, apiErr.Message, apiErr.Details)
	}

	if errors.As(err, &verrs) || errors.Is(err, ingest.ErrValidation) {
		return http.StatusUnprocessableEntity, ErrorResponse("VALIDATION_FAILED",
			"One or more batch items failed validation", validationDetails(verrs))
	}

	if errors.Is(err, ingest.ErrStorage) || errors.As(err, &storageErr) {
		return http.StatusInternalServerError, ErrorResponse("STORAGE_ERROR",
			"Storage operation failed", nil)
	}

	if errors.Is(err, ErrBadRequest) {
		return http.StatusBadRequest, ErrorResponse("BAD_REQUEST", "Malformed request", nil)
	}

	// Default to internal server error for unknown errors
	return http.StatusInternalServerError, ErrorResponse("INTERNAL", "Internal server error", nil)
}

// validationDetails never returns nil so the envelope always carries a list.
func validationDetails(verrs record.ValidationErrors) []*record.ValidationError {
	if verrs == nil {
		return []*record.ValidationError{}
	}
	return verrs
}

// marshalResponse encodes an error envelope.
func marshalResponse(response *Response) []byte {
	jsonBytes, err := json.Marshal(response)
	if err != nil {
		// Fallback error response if marshaling fails
		fallback := map[string]interface{}{
			"result":        "error",
			"code":          "INTERNAL",
			"message":       "Failed to marshal error response",
			"correlationId": generateCorrelationID(),
		}
		jsonBytes, _ := json.Marshal(fallback)
		return jsonBytes
	}

	return jsonBytes
}

// NewAPIError creates a new API error.
func NewAPIError(code string, message string, statusCode int, details interface{}) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// badRequest reports a malformed request body.
func badRequest(message string) error {
	return NewAPIError("BAD_REQUEST", message, http.StatusBadRequest, nil)
}
