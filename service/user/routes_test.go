package user

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KAsare1/slotbook-server/apperror"
	"github.com/KAsare1/slotbook-server/cmd/utils"
	"github.com/KAsare1/slotbook-server/repository"
	"github.com/gorilla/mux"
)

func newHandler() (*Handler, *repository.MemoryStore, *utils.Auth) {
	store := repository.NewMemoryStore()
	auth := utils.NewAuth("secret", time.Hour)
	return NewHandler(store, auth, slog.New(slog.NewTextHandler(io.Discard, nil))), store, auth
}

func TestRegisterCreatesDefaultSchedule(t *testing.T) {
	h, store, _ := newHandler()
	ctx := context.Background()

	host, err := h.Register(ctx, RegisterRequest{
		Username: "Dennis", FullName: "Dennis R", Email: "Dennis@Example.com", Password: "correct-horse", TimeZone: "America/Chicago",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if host.Username != "dennis" || host.Email != "dennis@example.com" || host.PasswordHash == "correct-horse" {
		t.Fatalf("unexpected host %+v", host)
	}

	schedule, err := store.Repositories().Schedules.GetDefault(ctx, host.ID)
	if err != nil {
		t.Fatalf("default schedule missing: %v", err)
	}
	if schedule.TimeZone != "America/Chicago" || len(schedule.Rules) != 5 {
		t.Fatalf("unexpected default schedule %+v", schedule)
	}

	_, err = h.Register(ctx, RegisterRequest{Username: "other", FullName: "O", Email: "dennis@example.com", Password: "12345678"})
	if !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("duplicate email: expected conflict, got %v", err)
	}
	_, err = h.Register(ctx, RegisterRequest{Username: "x y", FullName: "O", Email: "o@example.com", Password: "short"})
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoginAndMe(t *testing.T) {
	h, _, auth := newHandler()
	if _, err := h.Register(context.Background(), RegisterRequest{
		Username: "frances", FullName: "Frances A", Email: "fa@example.com", Password: "s3cret-pass",
	}); err != nil {
		t.Fatal(err)
	}

	public := mux.NewRouter()
	h.RegisterRoutes(public)
	protected := public.NewRoute().Subrouter()
	protected.Use(auth.Middleware)
	h.RegisterHostRoutes(protected)

	body, _ := json.Marshal(LoginRequest{Email: "fa@example.com", Password: "wrong-pass"})
	rec := httptest.NewRecorder()
	public.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status %d", rec.Code)
	}

	body, _ = json.Marshal(LoginRequest{Email: "FA@example.com", Password: "s3cret-pass"})
	rec = httptest.NewRecorder()
	public.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}
	var token TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &token); err != nil || token.AccessToken == "" {
		t.Fatalf("no token in %s", rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rec = httptest.NewRecorder()
	public.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status %d", rec.Code)
	}
	var me map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &me)
	if me["username"] != "frances" {
		t.Fatalf("unexpected me %v", me)
	}
	if _, leaked := me["password_hash"]; leaked {
		t.Fatal("password hash must not be serialized")
	}
}

func TestRegisterRoute(t *testing.T) {
	h, _, _ := newHandler()
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	post := func(req RegisterRequest) *httptest.ResponseRecorder {
		body, _ := json.Marshal(req)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body)))
		return rec
	}

	rec := post(RegisterRequest{Username: "grace", FullName: "Grace H", Email: "grace@example.com", Password: "cobol-1959"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status %d: %s", rec.Code, rec.Body.String())
	}
	var token TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &token); err != nil || token.AccessToken == "" || token.Host.Username != "grace" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	if rec := post(RegisterRequest{Username: "grace2", FullName: "G", Email: "grace@example.com", Password: "cobol-1959"}); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status %d", rec.Code)
	}
}
