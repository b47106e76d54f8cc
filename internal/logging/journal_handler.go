package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// journalIdentifier is the SYSLOG_IDENTIFIER used for `journalctl -t`.
const journalIdentifier = "visionnode"

// reportJournalFailure prints the first journal send error only; a camera
// stuck in a capture loop would otherwise flood stderr.
var reportJournalFailure sync.Once

// JournalHandler writes records to journald. Attributes become journal
// fields, so `journalctl MODULE=capture CAMERA_ID=lobby` filters per camera.
type JournalHandler struct {
	level  slog.Leveler
	fields []journalField
	prefix string
}

type journalField struct {
	key   string
	value string
}

// NewJournalHandler creates a journal handler gated by level, usually the
// module's LevelVar.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level}
}

// Enabled implements slog.Handler.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	priority := journalPriority(r.Level)
	vars := map[string]string{
		"SYSLOG_IDENTIFIER": journalIdentifier,
	}
	for _, f := range h.fields {
		vars[f.key] = f.value
	}
	r.Attrs(func(attr slog.Attr) bool {
		for _, f := range journalFieldsOf(h.prefix, attr) {
			vars[f.key] = f.value
		}
		return true
	})

	if err := journal.Send(r.Message, priority, vars); err != nil {
		reportJournalFailure.Do(func() {
			fmt.Fprintf(os.Stderr, "visionnode: journal unavailable: %v\n", err)
		})
		return err
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := append([]journalField(nil), h.fields...)
	for _, a := range attrs {
		fields = append(fields, journalFieldsOf(h.prefix, a)...)
	}
	return &JournalHandler{level: h.level, fields: fields, prefix: h.prefix}
}

// WithGroup implements slog.Handler.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &JournalHandler{level: h.level, fields: h.fields, prefix: h.prefix + name + "_"}
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// journalFieldsOf turns an attribute (and nested groups) into journal fields.
func journalFieldsOf(prefix string, attr slog.Attr) []journalField {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return nil
	}

	if attr.Value.Kind() == slog.KindGroup {
		inner := prefix
		if attr.Key != "" {
			inner += attr.Key + "_"
		}
		var out []journalField
		for _, a := range attr.Value.Group() {
			out = append(out, journalFieldsOf(inner, a)...)
		}
		return out
	}

	key := journalKey(prefix + attr.Key)
	if key == "" {
		return nil
	}
	return []journalField{{key: key, value: journalValue(attr.Value)}}
}

// journalKey maps an attribute key onto journald's field alphabet:
// upper-case letters, digits and underscores, not starting with an
// underscore (those are reserved for trusted fields).
func journalKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), "_")
}

func journalValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	default:
		return v.String()
	}
}

// IsJournalAvailable reports whether journald is reachable.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
