package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
)

// serverOptions mirrors the shape of the server's CLI options.
type serverOptions struct {
	Config string `help:"Config file path"`

	Port                string        `toml:"server.port" env:"SERVER_PORT"`
	CamerasAutostart    bool          `toml:"cameras.autostart" env:"CAMERAS_AUTOSTART"`
	MotionStep          int           `toml:"pipeline.motion_step" env:"PIPELINE_MOTION_STEP"`
	AggregationInterval time.Duration `toml:"aggregation.interval" env:"AGGREGATION_INTERVAL"`
	SafetyLabels        []string      `toml:"modules.safety_labels" env:"MODULES_SAFETY_LABELS"`
	MotionThreshold     float64       `toml:"pipeline.motion_threshold" env:"PIPELINE_MOTION_THRESHOLD"`
	LoggingStreams      string        `toml:"logging.streams" env:"LOGGING_STREAMS"`
}

const serverTOML = `
[server]
port = ":9000"

[cameras]
autostart = true

[pipeline]
motion_step = 8
motion_threshold = 0.25

[aggregation]
interval = "30s"

[modules]
safety_labels = ["no_helmet", "no_vest"]

[logging]
level = "warn"
format = "json"
streams = "debug"
api = "error"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func defaults(path string) *serverOptions {
	return &serverOptions{
		Config:              path,
		Port:                ":8090",
		MotionStep:          4,
		AggregationInterval: time.Minute,
		LoggingStreams:      "info",
	}
}

func TestLoadConfigAppliesTOML(t *testing.T) {
	opts := defaults(writeConfig(t, serverTOML))
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	want := &serverOptions{
		Config:              opts.Config,
		Port:                ":9000",
		CamerasAutostart:    true,
		MotionStep:          8,
		AggregationInterval: 30 * time.Second,
		SafetyLabels:        []string{"no_helmet", "no_vest"},
		MotionThreshold:     0.25,
		LoggingStreams:      "debug",
	}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigEnvOverridesTOML(t *testing.T) {
	opts := defaults(writeConfig(t, serverTOML))
	t.Setenv(EnvPrefix+"SERVER_PORT", ":7000")
	t.Setenv(EnvPrefix+"CAMERAS_AUTOSTART", "false")
	t.Setenv(EnvPrefix+"AGGREGATION_INTERVAL", "5s")
	t.Setenv(EnvPrefix+"MODULES_SAFETY_LABELS", " fall , fire ")
	t.Setenv(EnvPrefix+"PIPELINE_MOTION_THRESHOLD", "0.5")

	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if opts.Port != ":7000" || opts.CamerasAutostart {
		t.Errorf("env did not override TOML: port=%q autostart=%v", opts.Port, opts.CamerasAutostart)
	}
	if opts.AggregationInterval != 5*time.Second {
		t.Errorf("AggregationInterval = %v, want 5s", opts.AggregationInterval)
	}
	if diff := cmp.Diff([]string{"fall", "fire"}, opts.SafetyLabels); diff != "" {
		t.Errorf("SafetyLabels mismatch (-want +got):\n%s", diff)
	}
	if opts.MotionThreshold != 0.5 {
		t.Errorf("MotionThreshold = %v, want 0.5", opts.MotionThreshold)
	}
	// Untouched by env
	if opts.MotionStep != 8 {
		t.Errorf("MotionStep = %d, want 8 from TOML", opts.MotionStep)
	}
}

func TestLoadConfigKeepsFlagsSetOnCommandLine(t *testing.T) {
	opts := defaults(writeConfig(t, serverTOML))
	t.Setenv(EnvPrefix+"SERVER_PORT", ":7000")

	cmd := &cobra.Command{Use: "visionnode"}
	cmd.Flags().StringVar(&opts.Port, "port", ":8090", "")
	cmd.Flags().IntVar(&opts.MotionStep, "motion-step", 4, "")
	if err := cmd.Flags().Parse([]string{"--port", ":6000", "--motion-step", "2"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if opts.Port != ":6000" {
		t.Errorf("Port = %q, want the CLI value", opts.Port)
	}
	if opts.MotionStep != 2 {
		t.Errorf("MotionStep = %d, want the CLI value", opts.MotionStep)
	}
	if opts.AggregationInterval != 30*time.Second {
		t.Errorf("AggregationInterval = %v, want 30s from TOML", opts.AggregationInterval)
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	missing := defaults(filepath.Join(t.TempDir(), "absent.toml"))
	if err := LoadConfig(missing, nil); err != nil {
		t.Errorf("missing file should keep defaults, got %v", err)
	}
	if missing.Port != ":8090" {
		t.Errorf("Port = %q, want default", missing.Port)
	}

	broken := defaults(writeConfig(t, "[server\nport = "))
	if err := LoadConfig(broken, nil); err == nil {
		t.Error("expected an error for invalid TOML")
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"sink": map[string]any{
			"sqlite": map[string]any{"path": "events.db"},
			"queue":  int64(1024),
		},
		"port": ":8090",
	}

	tests := []struct {
		path string
		want any
	}{
		{"port", ":8090"},
		{"sink.queue", int64(1024)},
		{"sink.sqlite.path", "events.db"},
		{"nats", nil},
		{"sink.retention", nil},
		{"port.value", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":                     "port",
		"CamerasAutostart":         "cameras-autostart",
		"SubscriptionsSendTimeout": "subscriptions-send-timeout",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	cfg := LoadLoggingConfig(writeConfig(t, serverTOML))
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("level/format = %q/%q, want warn/json", cfg.Level, cfg.Format)
	}
	if diff := cmp.Diff(map[string]string{"streams": "debug", "api": "error"}, cfg.Modules); diff != "" {
		t.Errorf("modules mismatch (-want +got):\n%s", diff)
	}

	fallback := LoadLoggingConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if fallback.Level != "info" || fallback.Format != "text" || len(fallback.Modules) != 0 {
		t.Errorf("missing file should give defaults, got %+v", fallback)
	}
}
