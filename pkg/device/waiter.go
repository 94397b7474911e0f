// Package device observes the local filesystem for block devices
// materialized by the cloud provider.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"
)

const sysBlockDir = "/sys/block"

// Waiter polls for a device node to appear. Unlike a bare poll loop it is
// bounded: the context cancels it and timeout caps the total wait
// (0 disables the cap).
type Waiter struct {
	interval time.Duration
	timeout  time.Duration

	// blockDir is the directory listed to spot newly attached block devices;
	// overridable in tests.
	blockDir string
}

// NewWaiter creates a waiter polling at the given interval with the given
// deadline.
func NewWaiter(interval, timeout time.Duration) *Waiter {
	return &Waiter{
		interval: interval,
		timeout:  timeout,
		blockDir: sysBlockDir,
	}
}

// Exists reports whether a filesystem entry exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Exists reports whether a filesystem entry exists at path.
func (w *Waiter) Exists(path string) bool {
	return Exists(path)
}

// Wait blocks until path exists, the deadline elapses, or ctx is cancelled.
//
// EC2 may attach the volume under a dynamically assigned name (an NVMe
// device) that never matches the requested path. The waiter does not guess
// which newly appeared device is ours; on timeout it lists the block devices
// that showed up since the wait began so the operator can identify the
// attachment.
func (w *Waiter) Wait(ctx context.Context, path string) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	before := w.listBlockDevices()

	slog.Info("device_wait_started", "device", path, "interval", w.interval, "timeout", w.timeout)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if Exists(path) {
			slog.Info("device_ready", "device", path)
			return nil
		}

		select {
		case <-ctx.Done():
			appeared := diff(before, w.listBlockDevices())
			slog.Error("device_wait_aborted", "device", path, "appeared_devices", appeared, "error", ctx.Err())
			if len(appeared) > 0 {
				return fmt.Errorf("device %s did not appear (%v); new block devices since attach: %v", path, ctx.Err(), appeared)
			}
			return fmt.Errorf("device %s did not appear: %w", path, ctx.Err())
		case <-ticker.C:
			slog.Debug("device_wait_poll", "device", path)
		}
	}
}

// listBlockDevices returns the current block device names, or nil when the
// listing is unavailable (non-Linux hosts).
func (w *Waiter) listBlockDevices() []string {
	entries, err := os.ReadDir(w.blockDir)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// diff returns the names present in after but not in before.
func diff(before, after []string) []string {
	seen := make(map[string]bool, len(before))
	for _, name := range before {
		seen[name] = true
	}

	var appeared []string
	for _, name := range after {
		if !seen[name] {
			appeared = append(appeared, name)
		}
	}
	return appeared
}
