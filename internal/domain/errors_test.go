package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want int
	}{
		{"invalid input", ErrInvalidInput("bad"), http.StatusBadRequest},
		{"precondition failed", ErrPreconditionFailed("out of order"), http.StatusBadRequest},
		{"not found", ErrNotFound("missing"), http.StatusNotFound},
		{"remote unreachable", ErrRemoteUnreachable("down"), http.StatusServiceUnavailable},
		{"timeout", ErrTimeout("slow"), http.StatusGatewayTimeout},
		{"remote rejected passes upstream status", ErrRemoteRejected(422, "rejected"), 422},
		{"remote rejected with 2xx falls back to 502", ErrRemoteRejected(200, "odd"), http.StatusBadGateway},
		{"remote rejected with no status falls back to 502", NewAPIError(ErrorTypeRemoteRejected, "rejected"), http.StatusBadGateway},
		{"internal", ErrInternal("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorStringIncludesStage(t *testing.T) {
	err := ErrPreconditionFailed("execute o modulo1 primeiro").WithStage(StageModulo1)
	want := "precondition_failed (modulo1): execute o modulo1 primeiro"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestAsAPIError(t *testing.T) {
	apiErr := ErrNotFound("missing")
	if got := AsAPIError(fmt.Errorf("wrapped: %w", apiErr)); got != apiErr {
		t.Errorf("AsAPIError did not unwrap, got %v", got)
	}

	plain := errors.New("disk full")
	got := AsAPIError(plain)
	if got.Type != ErrorTypeInternal {
		t.Errorf("plain errors must map to internal, got %s", got.Type)
	}
	if got.Message != "disk full" {
		t.Errorf("Message = %q, want original text", got.Message)
	}
}
