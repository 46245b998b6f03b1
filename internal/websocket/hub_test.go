package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ims/internal/middleware"
	"ims/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var testSecret = []byte("ws-secret")

type stubPermissions map[string][]string

func (s stubPermissions) PermissionCodes(_ context.Context, role string) ([]string, error) {
	return s[role], nil
}

func signToken(t *testing.T, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  uuid.NewString(),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func startServer(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.InitAuth(middleware.AuthConfig{Secret: testSecret, AccessTTL: time.Hour}, stubPermissions{
		"admin": {ViewPermission},
		"staff": {"requests.write"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil, nil)
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", hub.ServeWs)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestServeWsRejectsUnauthorized(t *testing.T) {
	_, url := startServer(t)

	testCases := []struct {
		name   string
		query  string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "?token=abc", http.StatusUnauthorized},
		{"missing permission", "?token=" + signToken(t, "staff"), http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(url+tc.query, nil)
			if err == nil {
				conn.Close()
				t.Fatal("expected handshake to fail")
			}
			if resp == nil || resp.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %+v", tc.status, resp)
			}
		})
	}
}

func TestPublishReachesClient(t *testing.T) {
	hub, url := startServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+signToken(t, "admin"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(context.Background(), notify.NewEvent(notify.EventOrderCreated, "order-1", map[string]string{"order_no": "PO-1"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var evt notify.Event
	if err := json.Unmarshal(message, &evt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.Type != notify.EventOrderCreated || evt.EntityID != "order-1" {
		t.Errorf("unexpected event %+v", evt)
	}
}

func TestPublishWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewHub(nil, nil)
	// no Run loop: the buffer absorbs events and then drops them
	for i := 0; i < sendBufferSize+10; i++ {
		hub.Publish(context.Background(), notify.NewEvent(notify.EventStockUpdated, "x", nil))
	}
}
