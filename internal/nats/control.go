package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// StreamController is the stream lifecycle surface driven by control messages.
type StreamController interface {
	StartStream(ctx context.Context, cameraID string) error
	StopStream(ctx context.Context, cameraID string) error
	RestartStream(ctx context.Context, cameraID string) error
}

// ControlMessage is the optional body of a control message.
type ControlMessage struct {
	Reason string `json:"reason,omitempty"`
}

// ControlReply is sent back when a control message carries a reply subject.
type ControlReply struct {
	CameraID string `json:"camera_id"`
	Action   string `json:"action"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// controlTimeout bounds one control action.
const controlTimeout = 30 * time.Second

// ServeControl subscribes to visionnode.control.> and applies each action to
// ctrl. resolve maps a subject token back to a camera id; when nil, the token
// is used as is. The subscription is re-established after reconnects and
// removed by Close.
func (s *Sink) ServeControl(ctrl StreamController, resolve func(token string) string) {
	if resolve == nil {
		resolve = func(token string) string { return token }
	}

	var sub *nats.Subscription
	s.onConnected(func(nc *nats.Conn) {
		if sub != nil && sub.IsValid() {
			return
		}
		var err error
		sub, err = nc.Subscribe(SubjectControlPrefix+".>", func(msg *nats.Msg) {
			s.handleControl(ctrl, resolve, msg)
		})
		if err != nil {
			s.logger.Warn("Failed to subscribe to control commands", "error", err)
		}
	})
}

func (s *Sink) handleControl(ctrl StreamController, resolve func(string) string, msg *nats.Msg) {
	token, action, ok := parseControlSubject(msg.Subject)
	if !ok {
		s.logger.Warn("Ignoring malformed control subject", "subject", msg.Subject)
		return
	}

	var body ControlMessage
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &body); err != nil {
			s.logger.Warn("Failed to unmarshal control message", "error", err, "subject", msg.Subject)
		}
	}

	cameraID := resolve(token)
	s.logger.Info("Received control command", "camera_id", cameraID, "action", action, "reason", body.Reason)

	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()

	var err error
	switch action {
	case ActionStart:
		err = ctrl.StartStream(ctx, cameraID)
	case ActionStop:
		err = ctrl.StopStream(ctx, cameraID)
	case ActionRestart:
		err = ctrl.RestartStream(ctx, cameraID)
	default:
		err = fmt.Errorf("unknown control action %q", action)
	}
	if err != nil {
		s.logger.Warn("Control command failed", "camera_id", cameraID, "action", action, "error", err)
	}

	if msg.Reply == "" {
		return
	}
	reply := ControlReply{CameraID: cameraID, Action: action, OK: err == nil}
	if err != nil {
		reply.Error = err.Error()
	}
	data, mErr := json.Marshal(reply)
	if mErr != nil {
		return
	}
	if rErr := msg.Respond(data); rErr != nil {
		s.logger.Debug("Failed to answer control command", "error", rErr)
	}
}
