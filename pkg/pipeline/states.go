package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/superfly/fsm"

	"vmi/pkg/db"
)

// fail records the classified failure on the run and aborts the FSM. Nothing
// is rolled back: a volume created before the failing step stays behind, and
// its id remains on the run record for manual cleanup.
func (m *Machine) fail(resp *MaterializeResponse, cause error) (*fsm.Response[MaterializeResponse], error) {
	resp.Status = db.StatusFailed
	resp.ErrorMessage = cause.Error()
	if resp.RunID != 0 {
		if dbErr := m.repo.UpdateStatus(resp.RunID, db.StatusFailed, cause.Error()); dbErr != nil {
			slog.Error("run_status_update_failed", "run_id", resp.RunID, "error", dbErr)
		}
	}

	return nil, fsm.Abort(cause)
}

// handleCheckDevice gates the run on the device path not existing yet. It
// runs before any network call so a doomed run has no remote side effects.
func (m *Machine) handleCheckDevice(ctx context.Context, req *fsm.Request[MaterializeRequest, MaterializeResponse]) (*fsm.Response[MaterializeResponse], error) {
	slog.Info("fsm_state_check_device", "image_id", req.Msg.ImageID, "device", req.Msg.DevicePath)

	resp := req.W.Msg
	if resp == nil {
		resp = &MaterializeResponse{}
	}
	resp.DevicePath = req.Msg.DevicePath

	if m.devices.Exists(req.Msg.DevicePath) {
		slog.Error("device_path_already_exists", "device", req.Msg.DevicePath)
		return m.fail(resp, classify(ErrPrecondition, fmt.Errorf("device path %s already exists", req.Msg.DevicePath)))
	}

	run := &db.Run{
		ImageID:    req.Msg.ImageID,
		DevicePath: req.Msg.DevicePath,
		Status:     db.StatusRunning,
	}
	if err := m.repo.Create(run); err != nil {
		slog.Error("run_record_creation_failed", "image_id", req.Msg.ImageID, "error", err)
		return nil, fsm.Abort(err)
	}
	resp.RunID = run.ID

	slog.Info("run_started", "run_id", run.ID, "image_id", req.Msg.ImageID)
	return fsm.NewResponse(resp), nil
}

// handleResolveIdentity reads who and where we are from the metadata service
func (m *Machine) handleResolveIdentity(ctx context.Context, req *fsm.Request[MaterializeRequest, MaterializeResponse]) (*fsm.Response[MaterializeResponse], error) {
	slog.Info("fsm_state_resolve_identity", "image_id", req.Msg.ImageID)

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	identity, err := m.identity.ResolveIdentity(ctx)
	if err != nil {
		slog.Error("identity_resolution_failed", "error", err)
		return m.fail(resp, classifyIdentity(err))
	}

	resp.InstanceID = identity.InstanceID
	resp.AvailabilityZone = identity.AvailabilityZone

	m.recordProgress(resp)

	return fsm.NewResponse(resp), nil
}

// handleResolveSnapshot resolves the AMI to its backing snapshot
func (m *Machine) handleResolveSnapshot(ctx context.Context, req *fsm.Request[MaterializeRequest, MaterializeResponse]) (*fsm.Response[MaterializeResponse], error) {
	slog.Info("fsm_state_resolve_snapshot", "image_id", req.Msg.ImageID)

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	snapshotID, err := m.catalog.ResolveSnapshot(ctx, req.Msg.ImageID)
	if err != nil {
		slog.Error("snapshot_resolution_failed", "image_id", req.Msg.ImageID, "error", err)
		return m.fail(resp, classify(ErrCatalogResolution, err))
	}

	resp.SnapshotID = snapshotID
	m.recordProgress(resp)

	return fsm.NewResponse(resp), nil
}

// handleCreateVolume creates the volume from the snapshot in the host's zone
// and blocks until it is available
func (m *Machine) handleCreateVolume(ctx context.Context, req *fsm.Request[MaterializeRequest, MaterializeResponse]) (*fsm.Response[MaterializeResponse], error) {
	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	slog.Info("fsm_state_create_volume", "snapshot_id", resp.SnapshotID, "availability_zone", resp.AvailabilityZone)

	volumeID, err := m.volumes.CreateFromSnapshot(ctx, resp.SnapshotID, resp.AvailabilityZone)
	if err != nil {
		slog.Error("volume_creation_failed", "snapshot_id", resp.SnapshotID, "error", err)
		return m.fail(resp, classify(ErrProvisioning, err))
	}

	resp.VolumeID = volumeID
	m.recordProgress(resp)

	if err := m.volumes.WaitUntilAvailable(ctx, volumeID, m.volumeWait); err != nil {
		slog.Error("volume_availability_wait_failed", "volume_id", volumeID, "error", err)
		return m.fail(resp, classify(ErrProvisioning, err))
	}

	return fsm.NewResponse(resp), nil
}

// handleAttachVolume asks the provider to attach the volume to this instance
func (m *Machine) handleAttachVolume(ctx context.Context, req *fsm.Request[MaterializeRequest, MaterializeResponse]) (*fsm.Response[MaterializeResponse], error) {
	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	slog.Info("fsm_state_attach_volume", "volume_id", resp.VolumeID, "instance_id", resp.InstanceID)

	if err := m.volumes.Attach(ctx, resp.VolumeID, resp.InstanceID, req.Msg.DevicePath); err != nil {
		slog.Error("volume_attach_rejected", "volume_id", resp.VolumeID, "error", err)
		return m.fail(resp, classify(ErrAttach, err))
	}

	return fsm.NewResponse(resp), nil
}

// handleWaitDevice waits for the OS to expose the device node. The provider
// may have accepted the attach but surfaced the device under a different
// name; the waiter's timeout error reports newly appeared block devices.
func (m *Machine) handleWaitDevice(ctx context.Context, req *fsm.Request[MaterializeRequest, MaterializeResponse]) (*fsm.Response[MaterializeResponse], error) {
	slog.Info("fsm_state_wait_device", "device", req.Msg.DevicePath)

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	if err := m.devices.Wait(ctx, req.Msg.DevicePath); err != nil {
		slog.Error("device_wait_failed", "device", req.Msg.DevicePath, "error", err)
		return m.fail(resp, classify(ErrDeviceWait, err))
	}

	return fsm.NewResponse(resp), nil
}

// handleComplete marks the run as complete
func (m *Machine) handleComplete(ctx context.Context, req *fsm.Request[MaterializeRequest, MaterializeResponse]) (*fsm.Response[MaterializeResponse], error) {
	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	if err := m.repo.UpdateStatus(resp.RunID, db.StatusComplete, ""); err != nil {
		slog.Error("run_status_update_failed", "run_id", resp.RunID, "error", err)
		return nil, fsm.Abort(err)
	}
	resp.Status = db.StatusComplete

	slog.Info("fsm_complete", "run_id", resp.RunID, "volume_id", resp.VolumeID, "device", resp.DevicePath)
	return fsm.NewResponse(resp), nil
}

// recordProgress persists the response fields gathered so far onto the run
// record; failures here are logged, not fatal, since the record is
// bookkeeping only.
func (m *Machine) recordProgress(resp *MaterializeResponse) {
	run, err := m.repo.GetByID(resp.RunID)
	if err != nil || run == nil {
		slog.Error("run_record_load_failed", "run_id", resp.RunID, "error", err)
		return
	}

	run.InstanceID = resp.InstanceID
	run.AvailabilityZone = resp.AvailabilityZone
	run.SnapshotID = resp.SnapshotID
	run.VolumeID = resp.VolumeID

	if err := m.repo.Update(run); err != nil {
		slog.Error("run_record_update_failed", "run_id", resp.RunID, "error", err)
	}
}
