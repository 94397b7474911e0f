package db

// Schema defines the SQLite schema for materialization runs. Each row records
// one pipeline run and the cloud resource ids it produced; history is
// bookkeeping only and never resumes a run.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    image_id TEXT NOT NULL,
    device_path TEXT NOT NULL,
    instance_id TEXT,
    availability_zone TEXT,
    snapshot_id TEXT,
    volume_id TEXT,
    status TEXT NOT NULL CHECK(status IN ('pending', 'running', 'complete', 'failed')),
    error_message TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_image_id ON runs(image_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Status constants
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Run represents one materialization run record
type Run struct {
	ID               int64
	ImageID          string
	DevicePath       string
	InstanceID       string
	AvailabilityZone string
	SnapshotID       string
	VolumeID         string
	Status           string
	ErrorMessage     string
	CreatedAt        string
	UpdatedAt        string
}
