// Package cameras defines camera source configuration and the directory
// that stream management reads it from.
package cameras

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// SourceKind identifies how frames are pulled from a camera.
type SourceKind string

// Supported source kinds.
const (
	KindWebcam SourceKind = "webcam" // Local capture device by index
	KindIP     SourceKind = "ip"     // RTSP (or other streaming URL) camera
	KindFile   SourceKind = "file"   // Video file, image file or image directory
	KindHTTP   SourceKind = "http"   // JPEG snapshot endpoint, polled
	KindTest   SourceKind = "test"   // Generated test pattern
)

const (
	// DefaultFrameRate is used when a source does not set one.
	DefaultFrameRate = 30
	// DefaultQueueSize is the frame queue capacity used when a source does not set one.
	DefaultQueueSize = 30
)

// Credentials holds optional connection credentials for IP and HTTP cameras.
type Credentials struct {
	Username string `toml:"username,omitempty" json:"username,omitempty"`
	Password string `toml:"password,omitempty" json:"-"`
}

// Preprocess toggles per-frame preprocessing. Steps run in a fixed order:
// resize, grayscale, blur.
type Preprocess struct {
	Resize    bool `toml:"resize,omitempty" json:"resize,omitempty"`
	Grayscale bool `toml:"grayscale,omitempty" json:"grayscale,omitempty"`
	Blur      bool `toml:"blur,omitempty" json:"blur,omitempty"`
}

// CameraSource is the configuration of a single camera.
// It is immutable for the lifetime of a stream session; changes take effect
// on the next start.
type CameraSource struct {
	// ID is the unique camera identifier and the name of its event topic
	ID string `toml:"id" json:"id"`

	// Name is a human-readable name, defaults to ID
	Name string `toml:"name,omitempty" json:"name,omitempty"`

	Kind SourceKind `toml:"kind" json:"kind"`

	// DeviceIndex selects the capture device for webcam sources
	DeviceIndex int `toml:"device_index,omitempty" json:"device_index,omitempty"`

	// URL is the stream or snapshot URL for ip and http sources
	URL string `toml:"url,omitempty" json:"url,omitempty"`

	// Protocol is used when splicing credentials into an ip source URL (default "rtsp")
	Protocol string `toml:"protocol,omitempty" json:"protocol,omitempty"`

	// Path is the file or directory for file sources
	Path string `toml:"path,omitempty" json:"path,omitempty"`

	Credentials Credentials `toml:"credentials,omitempty" json:"credentials,omitempty"`

	// FrameRate is the target capture rate in frames per second
	FrameRate int `toml:"frame_rate,omitempty" json:"frame_rate,omitempty"`

	// Resolution is the target size in WIDTHxHEIGHT format
	Resolution string `toml:"resolution,omitempty" json:"resolution,omitempty"`

	Preprocess Preprocess `toml:"preprocess,omitempty" json:"preprocess,omitempty"`

	// Modules lists module topics (for example "school_3") that also receive this camera's events
	Modules []string `toml:"modules,omitempty" json:"modules,omitempty"`

	// Zone is the occupancy zone this camera covers
	Zone string `toml:"zone,omitempty" json:"zone,omitempty"`

	// QueueSize overrides the frame queue capacity
	QueueSize int `toml:"queue_size,omitempty" json:"queue_size,omitempty"`

	DisableDetection bool `toml:"disable_detection,omitempty" json:"disable_detection,omitempty"`
	DisableAnalytics bool `toml:"disable_analytics,omitempty" json:"disable_analytics,omitempty"`

	CreatedAt time.Time `toml:"created_at" json:"created_at"`
	UpdatedAt time.Time `toml:"updated_at" json:"updated_at"`
}

// Validate checks that the source can be used to start a stream.
// Errors wrap ErrConfigInvalid.
func (c CameraSource) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return invalid("camera id is required")
	}

	switch c.Kind {
	case KindWebcam:
		if c.DeviceIndex < 0 {
			return invalid("device_index must be >= 0")
		}
	case KindIP, KindHTTP:
		if c.URL == "" {
			return invalid("url is required for %s sources", c.Kind)
		}
		if _, err := url.Parse(c.URL); err != nil {
			return invalid("url is malformed: %v", err)
		}
	case KindFile:
		if c.Path == "" {
			return invalid("path is required for file sources")
		}
	case KindTest:
	case "":
		return invalid("source kind is required")
	default:
		return invalid("unknown source kind %q", c.Kind)
	}

	if c.FrameRate < 0 || c.FrameRate > 240 {
		return invalid("frame_rate must be between 0 and 240")
	}
	if c.QueueSize < 0 {
		return invalid("queue_size must be >= 0")
	}
	if c.Resolution != "" {
		if _, _, err := c.Dimensions(); err != nil {
			return err
		}
	} else if c.Preprocess.Resize {
		return invalid("resize requires a resolution")
	}
	return nil
}

// Dimensions parses Resolution. It returns 0, 0 when no resolution is set.
func (c CameraSource) Dimensions() (width, height int, err error) {
	if c.Resolution == "" {
		return 0, 0, nil
	}
	w, h, ok := strings.Cut(strings.ToLower(c.Resolution), "x")
	if !ok {
		return 0, 0, invalid("resolution %q is not WIDTHxHEIGHT", c.Resolution)
	}
	width, werr := strconv.Atoi(strings.TrimSpace(w))
	height, herr := strconv.Atoi(strings.TrimSpace(h))
	if werr != nil || herr != nil || width <= 0 || height <= 0 {
		return 0, 0, invalid("resolution %q is not WIDTHxHEIGHT", c.Resolution)
	}
	return width, height, nil
}

// FrameInterval is the pause between capture reads for the target frame rate.
func (c CameraSource) FrameInterval() time.Duration {
	fps := c.FrameRate
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return time.Second / time.Duration(fps)
}

// QueueCapacity returns the configured queue size or the default.
func (c CameraSource) QueueCapacity() int {
	if c.QueueSize > 0 {
		return c.QueueSize
	}
	return DefaultQueueSize
}

// StreamURL returns the URL to open with credentials embedded when set.
func (c CameraSource) StreamURL() string {
	if c.Credentials.Username == "" || c.Credentials.Password == "" {
		return c.URL
	}

	protocol := c.Protocol
	if protocol == "" {
		protocol = "rtsp"
	}

	rest := c.URL
	if _, after, found := strings.Cut(c.URL, "://"); found {
		rest = after
	}
	userInfo := url.UserPassword(c.Credentials.Username, c.Credentials.Password).String()
	return fmt.Sprintf("%s://%s@%s", protocol, userInfo, rest)
}

// IsVideoFile reports whether a file source points at a container the
// image decoders cannot read.
func (c CameraSource) IsVideoFile() bool {
	switch strings.ToLower(filepath.Ext(c.Path)) {
	case ".mp4", ".avi", ".mkv", ".mov", ".webm", ".h264", ".ts":
		return true
	}
	return false
}

// DetectionEnabled reports whether detection events are produced.
func (c CameraSource) DetectionEnabled() bool { return !c.DisableDetection }

// AnalyticsEnabled reports whether analytics events are produced.
func (c CameraSource) AnalyticsEnabled() bool { return !c.DisableAnalytics }

// DisplayName returns Name or falls back to ID.
func (c CameraSource) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
