package cameras

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a camera id is unknown to the directory.
	ErrNotFound = errors.New("camera not found")

	// ErrConfigInvalid is returned when a camera source cannot be used.
	ErrConfigInvalid = errors.New("camera configuration invalid")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfigInvalid, fmt.Sprintf(format, args...))
}

// Directory is the read side of camera configuration storage.
type Directory interface {
	// Get returns the source for a camera, or an error wrapping ErrNotFound.
	Get(id string) (CameraSource, error)
}

// Store is a writable Directory.
type Store interface {
	Directory

	// Load reads the configuration from storage
	Load() error

	// Save writes the configuration to storage
	Save() error

	// Put adds or replaces a camera
	Put(source CameraSource) error

	// Delete removes a camera
	Delete(id string) error

	// List returns all cameras ordered by id
	List() []CameraSource
}
