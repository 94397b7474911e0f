package db

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"vmi/pkg/errors"
)

// Repository provides database operations for materialization runs
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository
func NewRepository(dbPath string) (*Repository, error) {
	slog.Info("database_init", "db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("database_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open database")
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("database_schema_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to create schema")
	}

	slog.Info("database_ready", "db_path", dbPath)
	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Create inserts a new run record
func (r *Repository) Create(run *Run) error {
	slog.Info("database_create_run", "image_id", run.ImageID, "device_path", run.DevicePath)

	query := `
		INSERT INTO runs (image_id, device_path, instance_id, availability_zone, snapshot_id, volume_id, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.Exec(query,
		run.ImageID, run.DevicePath, run.InstanceID, run.AvailabilityZone,
		run.SnapshotID, run.VolumeID, run.Status, run.ErrorMessage)
	if err != nil {
		slog.Error("database_insert_failed", "image_id", run.ImageID, "error", err)
		return errors.Wrap(err, "failed to insert run")
	}

	id, err := result.LastInsertId()
	if err != nil {
		slog.Error("database_last_insert_id_failed", "image_id", run.ImageID, "error", err)
		return errors.Wrap(err, "failed to get last insert id")
	}
	run.ID = id

	slog.Info("database_run_created", "run_id", run.ID, "image_id", run.ImageID)
	return nil
}

// GetByID retrieves a run by id; returns nil when not found
func (r *Repository) GetByID(id int64) (*Run, error) {
	query := `
		SELECT id, image_id, device_path, instance_id, availability_zone,
		       snapshot_id, volume_id, status, error_message, created_at, updated_at
		FROM runs WHERE id = ?
	`
	var run Run
	var instanceID, zone, snapshotID, volumeID, errorMessage sql.NullString

	err := r.db.QueryRow(query, id).Scan(
		&run.ID, &run.ImageID, &run.DevicePath,
		&instanceID, &zone, &snapshotID, &volumeID,
		&run.Status, &errorMessage, &run.CreatedAt, &run.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("database_query_failed", "run_id", id, "error", err)
		return nil, errors.Wrap(err, "failed to query run")
	}

	run.InstanceID = instanceID.String
	run.AvailabilityZone = zone.String
	run.SnapshotID = snapshotID.String
	run.VolumeID = volumeID.String
	run.ErrorMessage = errorMessage.String

	return &run, nil
}

// Update updates an existing run record
func (r *Repository) Update(run *Run) error {
	slog.Info("database_update_run", "run_id", run.ID, "status", run.Status)

	query := `
		UPDATE runs
		SET instance_id = ?, availability_zone = ?, snapshot_id = ?, volume_id = ?,
		    status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		run.InstanceID, run.AvailabilityZone, run.SnapshotID, run.VolumeID,
		run.Status, run.ErrorMessage, run.ID)
	if err != nil {
		slog.Error("database_update_failed", "run_id", run.ID, "error", err)
		return errors.Wrap(err, "failed to update run")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return fmt.Errorf("run not found: id=%d", run.ID)
	}

	return nil
}

// UpdateStatus updates only the status and error message
func (r *Repository) UpdateStatus(id int64, status, errorMessage string) error {
	slog.Info("database_update_status", "run_id", id, "status", status)

	query := `UPDATE runs SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.Exec(query, status, errorMessage, id)
	if err != nil {
		slog.Error("database_status_update_failed", "run_id", id, "status", status, "error", err)
		return errors.Wrap(err, "failed to update status")
	}

	return nil
}

// List retrieves all runs, newest first
func (r *Repository) List() ([]*Run, error) {
	query := `
		SELECT id, image_id, device_path, instance_id, availability_zone,
		       snapshot_id, volume_id, status, error_message, created_at, updated_at
		FROM runs ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var instanceID, zone, snapshotID, volumeID, errorMessage sql.NullString

		err := rows.Scan(
			&run.ID, &run.ImageID, &run.DevicePath,
			&instanceID, &zone, &snapshotID, &volumeID,
			&run.Status, &errorMessage, &run.CreatedAt, &run.UpdatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}

		run.InstanceID = instanceID.String
		run.AvailabilityZone = zone.String
		run.SnapshotID = snapshotID.String
		run.VolumeID = volumeID.String
		run.ErrorMessage = errorMessage.String

		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}

	slog.Info("database_list_complete", "run_count", len(runs))
	return runs, nil
}
