package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestWebhookDeliversEvent(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt Event
		if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
			t.Errorf("decode: %v", err)
		}
		received <- evt
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL, 2*time.Second, nil)
	hook.Publish(context.Background(), NewEvent(EventOrderCreated, "order-1", map[string]string{"order_no": "PO-1"}))
	hook.Close()

	select {
	case evt := <-received:
		if evt.Type != EventOrderCreated || evt.EntityID != "order-1" {
			t.Errorf("unexpected event %+v", evt)
		}
	default:
		t.Fatal("expected the event to be delivered")
	}
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL, 2*time.Second, nil)
	hook.Publish(context.Background(), NewEvent(EventStockReceived, "order-2", nil))
	hook.Close()

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

type recorder struct{ events []Event }

func (r *recorder) Publish(_ context.Context, evt Event) { r.events = append(r.events, evt) }

func TestMultiFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Multi{a, nil, b, Nop{}}.Publish(context.Background(), NewEvent(EventRequestCreated, "r", nil))
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected one event per publisher, got %d and %d", len(a.events), len(b.events))
	}
}
