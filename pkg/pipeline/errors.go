package pipeline

import (
	"errors"
	"fmt"

	"vmi/pkg/metadata"
)

// One sentinel per failing step, so callers can classify a run's outcome with
// errors.Is instead of matching strings.
var (
	ErrPrecondition      = errors.New("device path precondition violated")
	ErrAuth              = errors.New("metadata authentication failed")
	ErrMetadataRead      = errors.New("metadata read failed")
	ErrCatalogResolution = errors.New("image catalog resolution failed")
	ErrProvisioning      = errors.New("volume provisioning failed")
	ErrAttach            = errors.New("volume attach failed")
	ErrDeviceWait        = errors.New("device wait failed")
)

// classify tags err with the sentinel for the failing step, keeping the
// underlying provider error in the chain.
func classify(step, err error) error {
	return fmt.Errorf("%w: %w", step, err)
}

// classifyIdentity splits identity-resolution failures into the token
// handshake vs value reads.
func classifyIdentity(err error) error {
	if errors.Is(err, metadata.ErrAuth) {
		return classify(ErrAuth, err)
	}
	return classify(ErrMetadataRead, err)
}
