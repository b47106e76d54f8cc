package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// cameraFile is a trimmed cameras.toml shape; the watcher is generic over it.
type cameraFile struct {
	Cameras map[string]struct {
		Kind string `toml:"kind"`
		FPS  int    `toml:"fps"`
	} `toml:"cameras"`
}

func loadCameraFile(path string) (cameraFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cameraFile{}, err
	}
	var f cameraFile
	err = toml.Unmarshal(data, &f)
	return f, err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, path string, loader func(string) (cameraFile, error), opts ...WatcherOption[cameraFile]) *Watcher[cameraFile] {
	t.Helper()
	opts = append([]WatcherOption[cameraFile]{WithDebounce[cameraFile](50 * time.Millisecond)}, opts...)
	w := NewConfigWatcher(path, loader, newTestLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	// fsnotify needs a moment before the first event is observed
	time.Sleep(100 * time.Millisecond)
	return w
}

func receive(t *testing.T, ch <-chan cameraFile) cameraFile {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
		return cameraFile{}
	}
}

func TestWatcherReloadsLatestContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cameras.toml")
	writeFile(t, path, "[cameras.lobby]\nkind = \"test\"\nfps = 5\n")

	var loads atomic.Int32
	w := startWatcher(t, path, func(p string) (cameraFile, error) {
		loads.Add(1)
		return loadCameraFile(p)
	})

	received := make(chan cameraFile, 4)
	w.OnReload(func(f cameraFile) { received <- f })

	writeFile(t, path, "[cameras.lobby]\nkind = \"test\"\nfps = 10\n")
	if got := receive(t, received).Cameras["lobby"].FPS; got != 10 {
		t.Errorf("first reload fps = %d, want 10", got)
	}

	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "[cameras.lobby]\nkind = \"test\"\nfps = 20\n\n[cameras.dock]\nkind = \"test\"\n")
	f := receive(t, received)
	if len(f.Cameras) != 2 || f.Cameras["lobby"].FPS != 20 {
		t.Errorf("second reload = %+v", f)
	}
	if got := loads.Load(); got < 2 {
		t.Errorf("loader called %d times, want at least 2", got)
	}
}

func TestWatcherHandlersAndUnsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cameras.toml")
	writeFile(t, path, "")

	w := startWatcher(t, path, loadCameraFile)

	kept := make(chan cameraFile, 4)
	var removedCalls atomic.Int32
	w.OnReload(func(f cameraFile) { kept <- f })
	unsubscribe := w.OnReload(func(cameraFile) { removedCalls.Add(1) })
	unsubscribe()

	writeFile(t, path, "[cameras.gate]\nkind = \"http\"\n")
	if got := receive(t, kept).Cameras["gate"].Kind; got != "http" {
		t.Errorf("kind = %q, want http", got)
	}
	if n := removedCalls.Load(); n != 0 {
		t.Errorf("unsubscribed handler called %d times", n)
	}
}

func TestWatcherReportsLoadErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cameras.toml")
	writeFile(t, path, "")

	errs := make(chan error, 4)
	w := startWatcher(t, path, loadCameraFile, WithErrorHandler[cameraFile](func(err error) { errs <- err }))

	var handled atomic.Int32
	w.OnReload(func(cameraFile) { handled.Add(1) })

	writeFile(t, path, "[cameras.lobby\nkind = ")
	select {
	case err := <-errs:
		if err == nil {
			t.Error("expected a parse error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
	if n := handled.Load(); n != 0 {
		t.Errorf("reload handler called %d times for invalid file", n)
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cameras.toml")
	writeFile(t, path, "")

	var loads atomic.Int32
	w := startWatcher(t, path, func(p string) (cameraFile, error) {
		loads.Add(1)
		return loadCameraFile(p)
	}, WithDebounce[cameraFile](200*time.Millisecond))

	received := make(chan cameraFile, 8)
	w.OnReload(func(f cameraFile) { received <- f })

	for fps := 1; fps <= 5; fps++ {
		writeFile(t, path, fmt.Sprintf("[cameras.lobby]\nkind = \"test\"\nfps = %d\n", fps))
		time.Sleep(20 * time.Millisecond)
	}

	if got := receive(t, received).Cameras["lobby"].FPS; got != 5 {
		t.Errorf("fps = %d, want the last write (5)", got)
	}
	time.Sleep(300 * time.Millisecond)
	if n := loads.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
}

func TestWatcherSeesReplacedAndLateFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cameras.toml")

	// The file does not exist yet when watching starts
	w := startWatcher(t, path, loadCameraFile)
	received := make(chan cameraFile, 4)
	w.OnReload(func(f cameraFile) { received <- f })

	writeFile(t, path, "[cameras.lobby]\nkind = \"test\"\n")
	if _, ok := receive(t, received).Cameras["lobby"]; !ok {
		t.Error("created file not loaded")
	}

	// Editors write a temp file and rename it over the original
	time.Sleep(100 * time.Millisecond)
	tmp := filepath.Join(dir, "cameras.toml.swp")
	writeFile(t, tmp, "[cameras.dock]\nkind = \"file\"\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	if got := receive(t, received).Cameras["dock"].Kind; got != "file" {
		t.Errorf("replaced file kind = %q, want file", got)
	}
}

func TestWatcherStopsDelivering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cameras.toml")
	writeFile(t, path, "")

	w := NewConfigWatcher(path, loadCameraFile, newTestLogger(), WithDebounce[cameraFile](20*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	var handled atomic.Int32
	w.OnReload(func(cameraFile) { handled.Add(1) })

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	writeFile(t, path, "[cameras.lobby]\nkind = \"test\"\n")
	time.Sleep(150 * time.Millisecond)
	if n := handled.Load(); n != 0 {
		t.Errorf("handler called %d times after Stop", n)
	}
}
