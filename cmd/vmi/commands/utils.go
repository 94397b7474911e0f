package commands

import (
	"os"
	"path/filepath"

	"vmi/pkg/errors"
)

// ensureDirectories creates the parent directories for the databases
func ensureDirectories(sqlitePath, fsmDBPath string) error {
	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
		return errors.Wrap(err, "failed to create database directory")
	}

	if fsmDBPath != "" {
		if err := os.MkdirAll(filepath.Dir(fsmDBPath), 0755); err != nil {
			return errors.Wrap(err, "failed to create FSM directory")
		}
	}

	return nil
}
