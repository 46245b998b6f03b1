package workflow

import (
	"errors"
	"testing"

	"ims/internal/model"
)

func TestOrderTransitions(t *testing.T) {
	testCases := []struct {
		name        string
		from, to    string
		wantChanged bool
		wantErr     error
	}{
		{"pending to placed", model.OrderStatusPending, model.OrderStatusPlaced, true, nil},
		{"pending to cancelled", model.OrderStatusPending, model.OrderStatusCancelled, true, nil},
		{"placed to received", model.OrderStatusPlaced, model.OrderStatusReceived, true, nil},
		{"placed to cancelled", model.OrderStatusPlaced, model.OrderStatusCancelled, true, nil},
		{"pending straight to received", model.OrderStatusPending, model.OrderStatusReceived, false, ErrInvalidTransition},
		{"received is terminal", model.OrderStatusReceived, model.OrderStatusCancelled, false, ErrInvalidTransition},
		{"cancelled is terminal", model.OrderStatusCancelled, model.OrderStatusReceived, false, ErrInvalidTransition},
		{"placed back to pending", model.OrderStatusPlaced, model.OrderStatusPending, false, ErrInvalidTransition},
		{"same status is a no-op", model.OrderStatusPlaced, model.OrderStatusPlaced, false, nil},
		{"unknown status", model.OrderStatusPending, "Shipped", false, ErrInvalidStatus},
		{"lowercase is not in the domain", model.OrderStatusPending, "placed", false, ErrInvalidStatus},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			changed, err := Orders.Transition(tc.from, tc.to)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if changed != tc.wantChanged {
				t.Errorf("expected changed=%v, got %v", tc.wantChanged, changed)
			}
		})
	}
}

func TestTransitionErrorMessage(t *testing.T) {
	_, err := Orders.Transition(model.OrderStatusCancelled, model.OrderStatusReceived)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "cannot mark Cancelled order as Received" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if errors.Is(err, ErrInvalidStatus) {
		t.Error("transition error must not match ErrInvalidStatus")
	}
}

func TestRequestTransitions(t *testing.T) {
	testCases := []struct {
		from, to string
		ok       bool
	}{
		{model.RequestStatusPending, model.RequestStatusApproved, true},
		{model.RequestStatusPending, model.RequestStatusRejected, true},
		{model.RequestStatusPending, model.RequestStatusPartiallyApproved, true},
		{model.RequestStatusApproved, model.RequestStatusRejected, false},
		{model.RequestStatusRejected, model.RequestStatusApproved, false},
		{model.RequestStatusPartiallyApproved, model.RequestStatusApproved, false},
		{model.RequestStatusApproved, model.RequestStatusPending, false},
	}

	for _, tc := range testCases {
		t.Run(tc.from+"->"+tc.to, func(t *testing.T) {
			_, err := Requests.Transition(tc.from, tc.to)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("expected invalid transition, got %v", err)
			}
		})
	}
}

func TestStockAnyToAny(t *testing.T) {
	statuses := Stock.Statuses()
	for _, from := range statuses {
		for _, to := range statuses {
			if _, err := Stock.Transition(from, to); err != nil {
				t.Errorf("%s -> %s: unexpected error %v", from, to, err)
			}
		}
	}
	if _, err := Stock.Transition(model.StockStatusInStock, "Lost"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected invalid status, got %v", err)
	}
}

func TestTerminal(t *testing.T) {
	if !Orders.Terminal(model.OrderStatusReceived) || !Orders.Terminal(model.OrderStatusCancelled) {
		t.Error("received and cancelled orders must be terminal")
	}
	if Orders.Terminal(model.OrderStatusPlaced) {
		t.Error("placed order is not terminal")
	}
	if Stock.Terminal(model.StockStatusTrash) {
		t.Error("stock statuses are never terminal")
	}
}
