package dives

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManagerReusesControllerPerSupervisor(t *testing.T) {
	manager, err := NewManager(ManagerConfig{
		Gateway:    &stubGateway{},
		IDProvider: &sequencedIDGenerator{prefix: "id"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer manager.Close()

	first, err := manager.Controller(context.Background(), "supervisor-1", "one@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := manager.Controller(context.Background(), "supervisor-1", "one@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same controller instance per supervisor")
	}

	other, err := manager.Controller(context.Background(), "supervisor-2", "two@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other == first {
		t.Fatalf("expected a distinct controller per supervisor")
	}
}

func TestManagerRehydratesOnFirstUse(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	gateway := &stubGateway{
		activeDive: &Dive{
			ID:           "dive-4",
			SupervisorID: "supervisor-1",
			Date:         "2026-03-01",
			StartTime:    "08:00:00",
			Status:       DiveStatusInProgress,
		},
		descEvents: []Event{
			{ID: "e-1", DiveID: "dive-4", EventTime: start, EventType: EventTypeDiveStarted},
		},
	}
	manager, err := NewManager(ManagerConfig{
		Gateway:    gateway,
		IDProvider: &sequencedIDGenerator{prefix: "id"},
		Clock:      func() time.Time { return start.Add(2 * time.Minute) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer manager.Close()

	controller, err := manager.Controller(context.Background(), "supervisor-1", "one@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if controller.ActiveDiveID() != "dive-4" {
		t.Fatalf("expected rehydrated session, got %q", controller.ActiveDiveID())
	}
	if controller.ElapsedSeconds() != 120 {
		t.Fatalf("expected 120 elapsed seconds, got %d", controller.ElapsedSeconds())
	}
}

func TestNewManagerRequiresDependencies(t *testing.T) {
	if _, err := NewManager(ManagerConfig{IDProvider: &sequencedIDGenerator{prefix: "id"}}); !errors.Is(err, errMissingGateway) {
		t.Fatalf("expected missing gateway, got %v", err)
	}
	if _, err := NewManager(ManagerConfig{Gateway: &stubGateway{}}); !errors.Is(err, errMissingIDProvider) {
		t.Fatalf("expected missing id provider, got %v", err)
	}
}
