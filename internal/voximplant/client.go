package voximplant

import "context"

// Client is the process-wide handle onto the vendor calling SDK.
//
// Rules (same posture as any provider adapter here):
// - No vendor calls outside this package's implementations.
// - The session manager consumes this interface only; tests inject fakes.
// - Event handlers must be registered via On before Init is called, or the
//   earliest events (SDKReady, a racing IncomingCall) can be lost.
type Client interface {
	// On registers the single event handler. Later calls replace it.
	On(h EventHandler)

	// Init configures the SDK. Emits SDKReady on success.
	Init(ctx context.Context, cfg InitConfig) error

	// Connect opens the signaling transport. Emits ConnectionEstablished or
	// ConnectionFailed.
	Connect(ctx context.Context) error

	// Login authenticates with a password. Emits AuthResult.
	Login(ctx context.Context, userName, password string) error

	// LoginWithToken authenticates with a one-time token. Emits AuthResult.
	LoginWithToken(ctx context.Context, userName, token string) error

	// Call starts an outbound call. Extra headers ride along as SIP X-headers.
	// The returned handle is a fresh subscription target; attach its handler
	// synchronously or risk missing an immediate Failed.
	Call(ctx context.Context, number string, headers map[string]string) (Call, error)

	// Disconnect tears down the transport.
	Disconnect()
}

// InitConfig mirrors the SDK capability flags the softphone needs.
type InitConfig struct {
	MicRequired         bool
	VideoSupport        bool
	ProgressTone        bool
	ProgressToneCountry string
}

// Call is one live call leg at the vendor.
type Call interface {
	ID() string

	// On registers the per-call event handler. Later calls replace it.
	On(h CallEventHandler)

	Answer()
	Decline()
	Hangup()

	MuteMicrophone()
	UnmuteMicrophone()

	// SetActive(false) puts the call on hold; SetActive(true) resumes it.
	SetActive(active bool)

	// SendTone transmits one DTMF digit.
	SendTone(digit string)
}

type EventHandler func(Event)

type CallEventHandler func(CallEvent)
