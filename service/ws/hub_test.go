package ws

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KAsare1/slotbook-server/cmd/utils"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLiveFeedDeliversHostEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run(ctx)

	auth := utils.NewAuth("secret", time.Hour)
	router := mux.NewRouter()
	router.Use(auth.Middleware)
	NewHandler(hub, nil).RegisterRoutes(router)
	server := httptest.NewServer(router)
	defer server.Close()

	token, _, _ := auth.GenerateToken(5)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return hub.Sessions(5) == 1 })

	hub.Publish(6, "booking.created", map[string]string{"uid": "other-host"})
	hub.Publish(5, "booking.created", map[string]string{"uid": "abc"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "booking.created" || msg.Data["uid"] != "abc" {
		t.Fatalf("unexpected message %+v", msg)
	}

	conn.Close()
	waitFor(t, func() bool { return hub.Sessions(5) == 0 })
}

func TestLiveFeedRequiresToken(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := mux.NewRouter()
	router.Use(utils.NewAuth("secret", time.Hour).Middleware)
	NewHandler(hub, nil).RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
}
