package db

import (
	"path/filepath"
	"testing"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)

	run := &Run{
		ImageID:    "ami-1",
		DevicePath: "/dev/xvdg",
		Status:     StatusPending,
	}
	if err := repo.Create(run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if run.ID == 0 {
		t.Fatal("expected run id to be assigned")
	}

	got, err := repo.GetByID(run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.ImageID != run.ImageID || got.DevicePath != run.DevicePath {
		t.Errorf("retrieved run mismatch: got %+v, want %+v", got, run)
	}
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.GetByID(999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing run, got %+v", got)
	}
}

func TestRepository_Update(t *testing.T) {
	repo := newTestRepo(t)

	run := &Run{ImageID: "ami-1", DevicePath: "/dev/xvdg", Status: StatusPending}
	repo.Create(run)

	run.InstanceID = "i-1"
	run.AvailabilityZone = "us-east-1a"
	run.SnapshotID = "snap-1"
	run.VolumeID = "vol-1"
	run.Status = StatusComplete
	if err := repo.Update(run); err != nil {
		t.Fatalf("failed to update run: %v", err)
	}

	got, _ := repo.GetByID(run.ID)
	if got.VolumeID != "vol-1" || got.Status != StatusComplete {
		t.Errorf("update not persisted: got %+v", got)
	}
}

func TestRepository_UpdateStatus(t *testing.T) {
	repo := newTestRepo(t)

	run := &Run{ImageID: "ami-1", DevicePath: "/dev/xvdg", Status: StatusPending}
	repo.Create(run)

	if err := repo.UpdateStatus(run.ID, StatusFailed, "attach rejected"); err != nil {
		t.Fatalf("failed to update status: %v", err)
	}

	got, _ := repo.GetByID(run.ID)
	if got.Status != StatusFailed {
		t.Errorf("status not updated: got %s, want %s", got.Status, StatusFailed)
	}
	if got.ErrorMessage != "attach rejected" {
		t.Errorf("error message not persisted: got %q", got.ErrorMessage)
	}
}

func TestRepository_List(t *testing.T) {
	repo := newTestRepo(t)

	repo.Create(&Run{ImageID: "ami-1", DevicePath: "/dev/xvdg", Status: StatusComplete})
	repo.Create(&Run{ImageID: "ami-2", DevicePath: "/dev/xvdh", Status: StatusFailed})

	runs, err := repo.List()
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}
