//
//
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Response represents the unified envelope format.
type Response struct {
	Result        string      `json:"result"`
	Data          interface{} `json:"data,omitempty"`
	Code          string      `json:"code,omitempty"`
	Message       string      `json:"message,omitempty"`
	Details       interface{} `json:"details,omitempty"`
	CorrelationID string      `json:"correlationId"`
}

// SuccessResponse creates a success response.
func SuccessResponse(data interface{}) *Response {
	return &Response{
		Result:        "ok",
		Data:          data,
		CorrelationID: generateCorrelationID(),
	}
}

// ErrorResponse creates an error response.
func ErrorResponse(code, message string, details interface{}) *Response {
	return &Response{
		Result:        "error",
		Code:          code,
		Message:       message,
		Details:       details,
		CorrelationID: generateCorrelationID(),
	}
}

// WriteSuccess writes a success response to the HTTP response writer.
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	response := SuccessResponse(data)
	writeResponse(w, http.StatusOK, response)
}

// WriteError writes an error response to the HTTP response writer.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details interface{}) {
	response := ErrorResponse(code, message, details)
	writeResponse(w, statusCode, response)
}

// WriteAPIError writes the envelope ToAPIError derives from err.
func WriteAPIError(w http.ResponseWriter, err error) {
	status, response := toAPIResponse(err)
	writeResponse(w, status, response)
}

// writeResponse writes a JSON response to the HTTP response writer. The
// correlation id set by the request middleware wins over a generated one.
func writeResponse(w http.ResponseWriter, statusCode int, response *Response) {
	if id := w.Header().Get(CorrelationHeader); id != "" {
		response.CorrelationID = id
	}

	body, err := json.Marshal(response)
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Internal server error: %v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// generateCorrelationID generates a unique correlation ID.
func generateCorrelationID() string {
	return uuid.NewString()
}
