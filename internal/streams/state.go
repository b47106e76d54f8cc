package streams

// State is the lifecycle state of a stream session.
type State string

// Stream session states.
//
//	Inactive -> Starting -> Active -> Stopping -> Inactive
//	                 \          \
//	                  +-> Error  +-> Error
//
// Error is terminal until the next StartStream.
const (
	StateInactive State = "inactive"
	StateStarting State = "starting"
	StateActive   State = "active"
	StateStopping State = "stopping"
	StateError    State = "error"
)

// IsStreaming reports whether frames are flowing in this state.
func (s State) IsStreaming() bool {
	return s == StateActive
}
