package nats

import (
	"fmt"
	"strings"

	"github.com/smazurov/visionnode/internal/events"
)

// Subject prefixes for NATS topics.
const (
	SubjectCamerasPrefix = "visionnode.cameras"
	SubjectControlPrefix = "visionnode.control"
)

// Control actions accepted on control subjects.
const (
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionRestart = "restart"
)

var tokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_", "\t", "_", "\n", "_", "\r", "_")

// Token turns a camera id into a single valid subject token.
func Token(cameraID string) string {
	if cameraID == "" {
		return "_"
	}
	return tokenReplacer.Replace(cameraID)
}

// SubjectCameraEvents returns the subject a camera's messages of one type are published on.
func SubjectCameraEvents(cameraID string, t events.MessageType) string {
	return fmt.Sprintf("%s.%s.%s", SubjectCamerasPrefix, Token(cameraID), t)
}

// SubjectControl returns the subject for a control action on a camera.
func SubjectControl(cameraID, action string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectControlPrefix, Token(cameraID), action)
}

// parseControlSubject splits visionnode.control.{id}.{action}.
func parseControlSubject(subject string) (cameraToken, action string, ok bool) {
	rest, found := strings.CutPrefix(subject, SubjectControlPrefix+".")
	if !found {
		return "", "", false
	}
	i := strings.LastIndexByte(rest, '.')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}
