package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrappedErrorsMatchSentinels(t *testing.T) {
	err := fmt.Errorf("add quote: %w", CapacityExceeded("rfq %s already has %d quotes", "r1", 5))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("Expected wrapped error to match ErrCapacityExceeded")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("Expected wrapped error not to match ErrNotFound")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("reason", "too short"), http.StatusBadRequest},
		{NotFound("rfq", "x"), http.StatusNotFound},
		{CapacityExceeded("full"), http.StatusConflict},
		{DecisionFinalized("x"), http.StatusConflict},
		{Unauthenticated(), http.StatusUnauthorized},
		{Forbidden("view"), http.StatusForbidden},
		{AllocationConflict("busy"), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(fmt.Errorf("op: %w", tt.err)); got != tt.want {
			t.Errorf("HTTPStatus(%v): expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

func TestValidationCarriesField(t *testing.T) {
	err := Validation("rate", "must be non-negative")
	if len(err.Fields) != 1 || err.Fields[0].Field != "rate" {
		t.Fatalf("Expected one field error for rate, got %+v", err.Fields)
	}
	if err.Error() != "rate: must be non-negative" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestCode(t *testing.T) {
	if got := Code(fmt.Errorf("wrap: %w", DecisionFinalized("r1"))); got != "DECISION_FINALIZED" {
		t.Errorf("Expected DECISION_FINALIZED, got %s", got)
	}
	if got := Code(errors.New("plain")); got != "INTERNAL" {
		t.Errorf("Expected INTERNAL, got %s", got)
	}
}
