package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/visionnode/internal/cameras"
)

// config represents the complete cameras file for TOML marshaling.
type config struct {
	Version int                             `toml:"version" json:"version"`
	Cameras map[string]cameras.CameraSource `toml:"cameras" json:"cameras"`
}

// tomlStore implements cameras.Store using TOML file storage.
type tomlStore struct {
	configPath string
	mu         sync.RWMutex
	config     *config
}

// NewTOML creates a new TOML-based camera store.
func NewTOML(configPath string) cameras.Store {
	if configPath == "" {
		configPath = "cameras.toml"
	}

	return &tomlStore{
		configPath: configPath,
		config:     emptyConfig(),
	}
}

func emptyConfig() *config {
	return &config{
		Version: 1,
		Cameras: make(map[string]cameras.CameraSource),
	}
}

// Load loads the cameras file, replacing the in-memory view.
func (s *tomlStore) Load() error {
	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		// File doesn't exist, keep empty config
		return nil
	}

	data, err := os.ReadFile(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to read cameras config: %w", err)
	}

	loaded := emptyConfig()
	if unmarshalErr := toml.Unmarshal(data, loaded); unmarshalErr != nil {
		return fmt.Errorf("failed to parse cameras config: %w", unmarshalErr)
	}
	if loaded.Cameras == nil {
		loaded.Cameras = make(map[string]cameras.CameraSource)
	}
	if loaded.Version == 0 {
		loaded.Version = 1
	}

	// Table keys are authoritative for ids
	for id, cam := range loaded.Cameras {
		if cam.ID == "" {
			cam.ID = id
			loaded.Cameras[id] = cam
		}
	}

	s.mu.Lock()
	s.config = loaded
	s.mu.Unlock()
	return nil
}

// Save writes the cameras file.
func (s *tomlStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLocked()
}

func (s *tomlStore) saveLocked() error {
	dir := filepath.Dir(s.configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(s.config)
	if err != nil {
		return fmt.Errorf("failed to marshal cameras config: %w", err)
	}

	if writeErr := os.WriteFile(s.configPath, data, 0o600); writeErr != nil {
		return fmt.Errorf("failed to write cameras config: %w", writeErr)
	}
	return nil
}

// Get returns a camera by id.
func (s *tomlStore) Get(id string) (cameras.CameraSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cam, ok := s.config.Cameras[id]
	if !ok {
		return cameras.CameraSource{}, fmt.Errorf("%w: %s", cameras.ErrNotFound, id)
	}
	return cam, nil
}

// Put adds or replaces a camera and persists the file.
func (s *tomlStore) Put(source cameras.CameraSource) error {
	if err := source.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.config.Cameras[source.ID]; ok {
		source.CreatedAt = existing.CreatedAt
	} else if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	source.UpdatedAt = now

	s.config.Cameras[source.ID] = source
	return s.saveLocked()
}

// Delete removes a camera and persists the file.
func (s *tomlStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.config.Cameras[id]; !ok {
		return fmt.Errorf("%w: %s", cameras.ErrNotFound, id)
	}
	delete(s.config.Cameras, id)
	return s.saveLocked()
}

// List returns all cameras sorted by id.
func (s *tomlStore) List() []cameras.CameraSource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]cameras.CameraSource, 0, len(s.config.Cameras))
	for _, cam := range s.config.Cameras {
		list = append(list, cam)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}
