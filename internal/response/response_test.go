package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quoteflow/internal/apperr"
)

func TestErrorMapsKinds(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.Validation("reason", "too short"), 400, "VALIDATION_ERROR"},
		{fmt.Errorf("get: %w", apperr.NotFound("rfq", "r1")), 404, "NOT_FOUND"},
		{apperr.DecisionFinalized("r1"), 409, "DECISION_FINALIZED"},
		{apperr.CapacityExceeded("full"), 409, "CAPACITY_EXCEEDED"},
		{apperr.Unauthenticated(), 401, "UNAUTHORIZED"},
		{apperr.Forbidden("finalize"), 403, "FORBIDDEN"},
		{apperr.AllocationConflict("busy"), 503, "ALLOCATION_CONFLICT"},
		{errors.New("disk on fire"), 500, "INTERNAL"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		Error(w, httptest.NewRequest("GET", "/", nil), tt.err)
		if w.Code != tt.status {
			t.Errorf("%v: expected status %d, got %d", tt.err, tt.status, w.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("bad body %q: %v", w.Body.String(), err)
		}
		if body["code"] != tt.code {
			t.Errorf("%v: expected code %s, got %v", tt.err, tt.code, body["code"])
		}
	}
}

func TestErrorHidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, httptest.NewRequest("GET", "/", nil), errors.New("pq: password for user admin"))
	if strings.Contains(w.Body.String(), "password") {
		t.Errorf("Expected internal detail to be hidden, got %s", w.Body.String())
	}
}

func TestErrorIncludesFields(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, httptest.NewRequest("GET", "/", nil), apperr.Validation("reason", "too short"))
	var body struct {
		Fields []apperr.FieldError `json:"fields"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if len(body.Fields) != 1 || body.Fields[0].Field != "reason" {
		t.Errorf("Unexpected fields %+v", body.Fields)
	}
}

func TestDecodeBodyRejectsUnknownFields(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"x","extra":1}`))
	if err := DecodeBody(r, &v); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"x"}`))
	if err := DecodeBody(r, &v); err != nil || v.Name != "x" {
		t.Errorf("Expected decode to succeed, got %v %+v", err, v)
	}
}

func TestStatusWritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	Status(w, http.StatusCreated, map[string]string{"id": "r1"})
	if w.Code != 201 || !strings.Contains(w.Body.String(), `"data":{"id":"r1"}`) {
		t.Errorf("Unexpected response %d %s", w.Code, w.Body.String())
	}
}
