package notify

import (
	"testing"
	"time"
)

func TestToastAutoDismissal(t *testing.T) {
	hub := NewHub(20 * time.Millisecond)

	id := hub.Success("Report status updated.")
	if id == "" {
		t.Fatal("expected a toast id")
	}

	if got := len(hub.Active()); got != 1 {
		t.Fatalf("expected 1 active toast, got %d", got)
	}

	// First event announces the toast.
	ev := <-hub.Events()
	if ev.Dismissed || ev.Toast.ID != id || ev.Toast.Kind != Success {
		t.Errorf("unexpected first event: %+v", ev)
	}

	// Second event fires when the TTL expires.
	select {
	case ev = <-hub.Events():
		if !ev.Dismissed || ev.Toast.ID != id {
			t.Errorf("unexpected dismissal event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("toast never auto-dismissed")
	}

	if got := len(hub.Active()); got != 0 {
		t.Errorf("expected no active toasts after expiry, got %d", got)
	}
}

func TestExplicitDismissBeatsTimer(t *testing.T) {
	hub := NewHub(time.Hour)

	id := hub.Error("Failed to update status.")
	<-hub.Events()

	hub.Dismiss(id)

	ev := <-hub.Events()
	if !ev.Dismissed || ev.Toast.ID != id {
		t.Errorf("unexpected event after dismiss: %+v", ev)
	}
	if len(hub.Active()) != 0 {
		t.Error("toast still active after explicit dismissal")
	}

	// Dismissing again must be a no-op.
	hub.Dismiss(id)
	select {
	case ev = <-hub.Events():
		t.Errorf("unexpected event from double dismissal: %+v", ev)
	default:
	}
}

func TestToastIDsAreUnique(t *testing.T) {
	hub := NewHub(time.Hour)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		id := hub.Info("Logged out successfully.")
		if seen[id] {
			t.Fatalf("duplicate toast id %s", id)
		}
		seen[id] = true
	}

	if got := len(hub.Active()); got != 10 {
		t.Errorf("expected 10 active toasts, got %d", got)
	}
}

func TestActiveKeepsFireOrder(t *testing.T) {
	hub := NewHub(time.Hour)

	first := hub.Success("one")
	second := hub.Info("two")
	third := hub.Error("three")

	active := hub.Active()
	if len(active) != 3 {
		t.Fatalf("expected 3 toasts, got %d", len(active))
	}
	if active[0].ID != first || active[1].ID != second || active[2].ID != third {
		t.Error("toasts not in fire order")
	}
}
