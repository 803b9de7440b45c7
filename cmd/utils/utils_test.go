package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KAsare1/slotbook-server/apperror"
)

func TestAuthMiddleware(t *testing.T) {
	auth := NewAuth("test-secret", time.Hour)
	token, expires, err := auth.GenerateToken(42)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if !expires.After(time.Now()) {
		t.Fatalf("token already expired: %v", expires)
	}

	var seen uint
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetHostIDFromContext(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer " + token, "", http.StatusNoContent},
		{"query token", "", "?token=" + token, http.StatusNoContent},
		{"missing", "", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		seen = 0
		req := httptest.NewRequest(http.MethodGet, "/me"+tc.query, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: status %d want %d", tc.name, rec.Code, tc.status)
		}
		if tc.status == http.StatusNoContent && seen != 42 {
			t.Fatalf("%s: host id %d want 42", tc.name, seen)
		}
	}
}

func TestParseTokenRejectsOtherSecret(t *testing.T) {
	token, _, _ := NewAuth("one", time.Hour).GenerateToken(7)
	if _, err := NewAuth("two", time.Hour).ParseToken(token); !apperror.Is(err, apperror.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	rec := httptest.NewRecorder()
	WriteError(rec, req, errors.New("pq: connection refused"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "internal server error" || body["kind"] != "internal" {
		t.Fatalf("unexpected body %v", body)
	}

	rec = httptest.NewRecorder()
	WriteError(rec, req, apperror.Conflict("slot taken"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d", rec.Code)
	}
}

type sample struct {
	Name     string `json:"name" validate:"required"`
	Slug     string `json:"slug" validate:"slug"`
	Start    string `json:"start_time" validate:"clock"`
	TimeZone string `json:"timezone" validate:"timezone"`
	Date     string `json:"date" validate:"date"`
}

func TestValidateStructReportsJSONFields(t *testing.T) {
	valid := sample{Name: "x", Slug: "intro-call", Start: "09:30", TimeZone: "Europe/Berlin", Date: "2026-10-20"}
	if err := ValidateStruct(valid); err != nil {
		t.Fatalf("valid struct rejected: %v", err)
	}

	err := ValidateStruct(sample{Slug: "Bad Slug", Start: "9:30", TimeZone: "Nowhere/City", Date: "10/20/2026"})
	var appErr *apperror.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperror.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"name", "slug", "start_time", "timezone", "date"} {
		if _, ok := appErr.Fields[field]; !ok {
			t.Fatalf("missing field %q in %v", field, appErr.Fields)
		}
	}
}

func TestPagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/bookings?page=0&page_size=1000", nil)
	page, size := Pagination(req)
	if page != 1 || size != MaxPageSize {
		t.Fatalf("got page=%d size=%d", page, size)
	}
	req = httptest.NewRequest(http.MethodGet, "/bookings?page=461168601842738792&page_size=20", nil)
	page, size = Pagination(req)
	if page != MaxPage || size != 20 {
		t.Fatalf("huge page not capped: page=%d size=%d", page, size)
	}
	if offset := (page - 1) * size; offset < 0 {
		t.Fatalf("offset overflowed: %d", offset)
	}
	if TotalPages(41, 20) != 3 {
		t.Fatalf("TotalPages(41,20) = %d", TotalPages(41, 20))
	}
}
