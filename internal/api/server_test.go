package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleHealthReturnsOK(t *testing.T) {
	s := NewServer(nil, Settings{Host: "localhost", Port: 0}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleGetRunRejectsNonNumericID(t *testing.T) {
	s := NewServer(nil, Settings{Host: "localhost", Port: 0}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/not-a-number/report", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-numeric run id, got %d", rec.Code)
	}
}
