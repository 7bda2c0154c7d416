package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/o-litvinchuk-dev/lab3/internal/ingest"
	"github.com/o-litvinchuk-dev/lab3/internal/record"
	"github.com/o-litvinchuk-dev/lab3/internal/storage"
)

func TestToAPIError(t *testing.T) {
	verrs := record.ValidationErrors{{Index: 0, Field: "road_state", Reason: "expected string"}}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation_sentinel", ingest.ErrValidation, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"validation_wrapped", fmt.Errorf("%w: %w", ingest.ErrValidation, verrs), http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"validation_errors_only", verrs, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"storage_sentinel", fmt.Errorf("%w: %w", ingest.ErrStorage, errors.New("conn reset")), http.StatusInternalServerError, "STORAGE_ERROR"},
		{"storage_error_type", &storage.Error{Op: storage.OpListAll, Err: errors.New("timeout")}, http.StatusInternalServerError, "STORAGE_ERROR"},
		{"bad_request_sentinel", ErrBadRequest, http.StatusBadRequest, "BAD_REQUEST"},
		{"api_error", badRequest("Malformed JSON"), http.StatusBadRequest, "BAD_REQUEST"},
		{"custom_api_error", NewAPIError("TEAPOT", "no", http.StatusTeapot, nil), http.StatusTeapot, "TEAPOT"},
		{"unknown", errors.New("something odd"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ToAPIError(tt.err)
			if status != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, status)
			}

			var resp Response
			if err := json.Unmarshal(body, &resp); err != nil {
				t.Fatalf("Failed to decode body: %v", err)
			}
			if resp.Result != "error" {
				t.Errorf("Expected result error, got %q", resp.Result)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, resp.Code)
			}
			if resp.CorrelationID == "" {
				t.Error("Expected correlationId to be set")
			}
		})
	}
}

func TestToAPIErrorNil(t *testing.T) {
	status, body := ToAPIError(nil)
	if status != http.StatusOK || body != nil {
		t.Errorf("Expected 200 and no body for nil error, got %d %s", status, body)
	}
}

func TestValidationDetailsAlwaysList(t *testing.T) {
	_, body := ToAPIError(ingest.ErrValidation)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if string(raw["details"]) != "[]" {
		t.Errorf("Expected empty details list, got %s", raw["details"])
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := badRequest("Trailing data after JSON array")
	if err.Error() != "BAD_REQUEST: Trailing data after JSON array" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}
