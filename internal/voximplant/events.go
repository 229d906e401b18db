package voximplant

// Client-level events, delivered through the handler registered with
// Client.On. A tagged union instead of stringly-typed callbacks keeps the
// session manager's transition function exhaustive and testable offline.

type Event interface{ isEvent() }

// SDKReady fires once Init has completed.
type SDKReady struct{}

// ConnectionEstablished fires when the signaling transport is up.
type ConnectionEstablished struct{}

// ConnectionFailed fires when the transport could not be opened.
type ConnectionFailed struct {
	Reason string
}

// ConnectionClosed fires when an established transport drops.
type ConnectionClosed struct{}

// AuthResult reports the login outcome. Code carries the vendor reason on
// failure (401 bad credentials, 404 unknown user, 402 frozen account).
type AuthResult struct {
	OK   bool
	Code int
}

// IncomingCall carries a new inbound call leg plus its caller identity.
type IncomingCall struct {
	Call        Call
	CallerID    string
	DisplayName string
	Headers     map[string]string
}

func (SDKReady) isEvent()              {}
func (ConnectionEstablished) isEvent() {}
func (ConnectionFailed) isEvent()      {}
func (ConnectionClosed) isEvent()      {}
func (AuthResult) isEvent()            {}
func (IncomingCall) isEvent()          {}

// Per-call events, delivered through the handler registered with Call.On.

type CallEvent interface{ isCallEvent() }

// CallConnected fires when media is flowing both ways.
type CallConnected struct{}

// CallDisconnected fires on hangup from either side. This is the normal end
// of a call and carries no error.
type CallDisconnected struct{}

// CallFailed carries the SIP-style reason for a call that never completed
// (486 busy, 487 cancelled, 603 declined, 404 not found).
type CallFailed struct {
	Code   int
	Reason string
}

// ProgressToneStart fires when the far end starts ringing.
type ProgressToneStart struct{}

// ProgressToneStop fires when ringing stops.
type ProgressToneStop struct{}

// MediaElementCreated announces the remote audio sink for this call.
type MediaElementCreated struct {
	Element MediaElement
}

func (CallConnected) isCallEvent()       {}
func (CallDisconnected) isCallEvent()    {}
func (CallFailed) isCallEvent()          {}
func (ProgressToneStart) isCallEvent()   {}
func (ProgressToneStop) isCallEvent()    {}
func (MediaElementCreated) isCallEvent() {}

// MediaElement is the playback sink for remote audio.
type MediaElement interface {
	SetVolume(v float64)
	Play()
}
