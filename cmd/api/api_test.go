package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KAsare1/slotbook-server/config"
	"github.com/KAsare1/slotbook-server/repository"
	"github.com/KAsare1/slotbook-server/service/slots"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		StorageDriver:  config.DriverMemory,
		ServerPort:     "0",
		SecretKey:      "test-secret",
		TokenTTL:       time.Hour,
		RequestTimeout: 5 * time.Second,
		CORSOrigins:    []string{"*"},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := NewApiServer(cfg, repository.NewMemoryStore(), slots.NoopCache{}, log)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, method, url, token string, body interface{}, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

// nextTuesday returns a Tuesday at least a week ahead so the whole day is bookable.
func nextTuesday() string {
	day := time.Now().UTC().AddDate(0, 0, 7)
	for day.Weekday() != time.Tuesday {
		day = day.AddDate(0, 0, 1)
	}
	return day.Format("2006-01-02")
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	var body map[string]string
	if code := call(t, "GET", ts.URL+"/healthz", "", nil, &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/v1/me", "/api/v1/availability", "/api/v1/event-types", "/api/v1/bookings"} {
		if code := call(t, "GET", ts.URL+path, "", nil, nil); code != http.StatusUnauthorized {
			t.Errorf("GET %s = %d, want 401", path, code)
		}
	}
}

func TestBookingFlow(t *testing.T) {
	ts := newTestServer(t)
	base := ts.URL + "/api/v1"

	var auth struct {
		AccessToken string `json:"access_token"`
	}
	code := call(t, "POST", base+"/auth/register", "", map[string]string{
		"username":  "ada",
		"full_name": "Ada Lovelace",
		"email":     "ada@example.com",
		"password":  "correct-horse",
		"timezone":  "UTC",
	}, &auth)
	if code != http.StatusCreated || auth.AccessToken == "" {
		t.Fatalf("register = %d, token %q", code, auth.AccessToken)
	}

	var eventType struct {
		ID uint `json:"ID"`
	}
	code = call(t, "POST", base+"/event-types", auth.AccessToken, map[string]interface{}{
		"title":    "Intro call",
		"slug":     "intro",
		"duration": 30,
	}, &eventType)
	if code != http.StatusCreated || eventType.ID == 0 {
		t.Fatalf("create event type = %d, id %d", code, eventType.ID)
	}

	date := nextTuesday()
	var available struct {
		Slots []struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
			Time  string    `json:"time"`
		} `json:"slots"`
	}
	code = call(t, "GET", base+"/public/ada/intro/slots?date="+date, "", nil, &available)
	if code != http.StatusOK {
		t.Fatalf("slots = %d", code)
	}
	if len(available.Slots) != 16 {
		t.Fatalf("got %d slots, want 16", len(available.Slots))
	}
	first := available.Slots[0]
	if first.Time != "09:00" {
		t.Fatalf("first slot at %s", first.Time)
	}

	var booked struct {
		UID    string `json:"uid"`
		Status string `json:"status"`
	}
	book := map[string]interface{}{
		"event_type_id": eventType.ID,
		"booker_name":   "Grace",
		"booker_email":  "grace@example.com",
		"start_time":    first.Start,
		"end_time":      first.End,
	}
	code = call(t, "POST", base+"/public/book", "", book, &booked)
	if code != http.StatusCreated || booked.Status != "confirmed" || booked.UID == "" {
		t.Fatalf("book = %d %+v", code, booked)
	}

	if code := call(t, "POST", base+"/public/book", "", book, nil); code != http.StatusConflict {
		t.Fatalf("second booking of the same slot = %d, want 409", code)
	}

	code = call(t, "GET", base+"/public/ada/intro/slots?date="+date, "", nil, &available)
	if code != http.StatusOK || len(available.Slots) != 15 {
		t.Fatalf("after booking: status %d, %d slots", code, len(available.Slots))
	}

	var listed struct {
		Bookings []struct {
			UID string `json:"uid"`
		} `json:"bookings"`
		Total int64 `json:"total"`
	}
	code = call(t, "GET", base+"/bookings?type=upcoming", auth.AccessToken, nil, &listed)
	if code != http.StatusOK || listed.Total != 1 || listed.Bookings[0].UID != booked.UID {
		t.Fatalf("list = %d %+v", code, listed)
	}

	var cancelled struct {
		Status string `json:"status"`
	}
	code = call(t, "POST", base+"/bookings/"+booked.UID+"/cancel", "", map[string]string{"reason": "conflict"}, &cancelled)
	if code != http.StatusOK || cancelled.Status != "cancelled" {
		t.Fatalf("cancel = %d %+v", code, cancelled)
	}
}
