package config

import (
	"fmt"
	"log/slog"

	"github.com/smazurov/visionnode/internal/cameras"
)

// CameraLoader returns a watcher loader that reloads store from its file
// and yields the resulting camera list.
func CameraLoader(store cameras.Store) func(path string) ([]cameras.CameraSource, error) {
	return func(string) ([]cameras.CameraSource, error) {
		if err := store.Load(); err != nil {
			return nil, fmt.Errorf("reload cameras: %w", err)
		}
		return store.List(), nil
	}
}

// WatchCameras starts a watcher that reloads the camera store whenever the
// cameras file changes. Running streams keep their configuration until
// they are restarted.
func WatchCameras(path string, store cameras.Store, logger *slog.Logger) (*Watcher[[]cameras.CameraSource], error) {
	w := NewConfigWatcher(path, CameraLoader(store), logger)
	w.OnReload(func(list []cameras.CameraSource) {
		ids := make([]string, len(list))
		for i, c := range list {
			ids[i] = c.ID
		}
		logger.Info("Cameras reloaded", "count", len(list), "cameras", ids)
	})
	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	return w, nil
}
