package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequencedIDGenerator struct {
	next int
}

func (g *sequencedIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("job-%d", g.next), nil
}

func newTestJobService(t *testing.T) *Service {
	t.Helper()

	dsn := fmt.Sprintf("file:divelog_jobs_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Job{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		IDProvider: &sequencedIDGenerator{},
	})
	if err != nil {
		t.Fatalf("failed to construct job service: %v", err)
	}
	return service
}

func TestCreateJobDefaultsToActive(t *testing.T) {
	service := newTestJobService(t)

	job, err := service.Create(context.Background(), JobInput{Name: "  Pier Inspection  ", ClientName: "Harbor Authority"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Name != "Pier Inspection" {
		t.Fatalf("expected trimmed name, got %q", job.Name)
	}
	if job.Status != JobStatusActive {
		t.Fatalf("expected active status, got %s", job.Status)
	}
}

func TestCreateJobRejectsInvalidInput(t *testing.T) {
	service := newTestJobService(t)

	if _, err := service.Create(context.Background(), JobInput{Name: "   "}); !errors.Is(err, ErrInvalidJobName) {
		t.Fatalf("expected invalid name, got %v", err)
	}
	if _, err := service.Create(context.Background(), JobInput{Name: "Pier", Status: "paused"}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
}

func TestUpdateJobRewritesFields(t *testing.T) {
	service := newTestJobService(t)

	created, err := service.Create(context.Background(), JobInput{Name: "Pier Inspection"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := service.Update(context.Background(), created.ID, JobInput{
		Name:     "Pier Inspection Phase 2",
		Location: "Berth 4",
		Status:   string(JobStatusCompleted),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Name != "Pier Inspection Phase 2" || updated.Location != "Berth 4" {
		t.Fatalf("unexpected updated fields: %+v", updated)
	}
	if updated.Status != JobStatusCompleted {
		t.Fatalf("expected completed status, got %s", updated.Status)
	}
}

func TestUpdateJobRejectsUnknownID(t *testing.T) {
	service := newTestJobService(t)
	_, err := service.Update(context.Background(), "missing", JobInput{Name: "Pier", Status: string(JobStatusActive)})
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected job not found, got %v", err)
	}
}

func TestListActiveExcludesClosedJobs(t *testing.T) {
	service := newTestJobService(t)

	active, err := service.Create(context.Background(), JobInput{Name: "Active Job"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.Create(context.Background(), JobInput{Name: "Done Job", Status: string(JobStatusCompleted)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list, err := service.ListActive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].ID != active.ID {
		t.Fatalf("expected only the active job, got %+v", list)
	}

	all, err := service.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(all))
	}
}
