package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/visionnode/internal/cameras"
	"github.com/smazurov/visionnode/internal/cameras/store"
)

func TestWatchCamerasReloadsStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cameras.toml")
	if err := os.WriteFile(path, []byte("version = 1\n\n[cameras.lobby]\nkind = \"test\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := store.NewTOML(path)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	w, err := WatchCameras(path, s, newTestLogger())
	if err != nil {
		t.Fatalf("WatchCameras() error = %v", err)
	}
	defer w.Stop()

	reloaded := make(chan int, 4)
	w.OnReload(func(list []cameras.CameraSource) { reloaded <- len(list) })

	time.Sleep(100 * time.Millisecond)
	content := "version = 1\n\n[cameras.lobby]\nkind = \"test\"\n\n[cameras.gate]\nkind = \"http\"\nurl = \"http://cam/snapshot.jpg\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case n := <-reloaded:
		if n != 2 {
			t.Errorf("reloaded %d cameras, want 2", n)
		}
	case <-time.After(4 * time.Second):
		t.Fatal("timeout waiting for camera reload")
	}

	if _, err := s.Get("gate"); err != nil {
		t.Errorf("store should know the new camera: %v", err)
	}
}
