package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"crm-softphone/internal/callstate"
	"crm-softphone/internal/voximplant"
)

var (
	// ErrCallInProgress rejects a second outbound dial while a call is live.
	ErrCallInProgress = errors.New("session: a call is already in progress")

	// ErrMicrophoneDenied fails one call attempt after a refused permission
	// re-request. The session itself stays up.
	ErrMicrophoneDenied = errors.New("session: microphone access denied")

	// ErrInvalidArgument covers empty phone numbers and transfer targets.
	ErrInvalidArgument = errors.New("session: invalid argument")
)

const ledgerTimeout = 10 * time.Second

// Contact correlation headers attached to outbound calls so the far end and
// the ledger can tie the call to a CRM contact without a round trip.
const (
	headerContactID   = "X-CRM-Contact-Id"
	headerContactName = "X-CRM-Contact-Name"
	headerRemoteNum   = "X-Remote-Number"
	headerRemoteName  = "X-Remote-Name"
)

// Manager owns the call-session state machine: SDK bootstrap, the auth
// handshake, inbound and outbound call lifecycle, in-call controls, and the
// single-slot pending-call queue. It is the sole writer of the persistent
// call-state store.
//
// All state mutation is serialized by mu; SDK events are applied in the
// order they are delivered and never reordered or coalesced. Ledger
// notifications run outside the lock and never feed back into call state.
type Manager struct {
	userID   string
	loader   *voximplant.Loader
	store    callstate.Store
	ledger   Ledger
	mic      Microphone
	ringtone Ringtone
	clock    func() time.Time
	log      *slog.Logger

	// notifyAsync is disabled in tests for deterministic assertions.
	notifyAsync bool

	mu      sync.Mutex
	rootCtx context.Context

	client voximplant.Client
	call   voximplant.Call

	sdkLoaded     bool
	connected     bool
	authenticated bool

	status    callstate.Status
	current   *callstate.Call
	pending   *callstate.PendingRequest
	muted     bool
	onHold    bool
	recording bool
	micDenied bool

	// lastErr is the single user-visible error; each new one replaces it.
	lastErr string
}

type Options struct {
	// UserID scopes the persisted slots to one agent.
	UserID string

	Loader *voximplant.Loader
	Store  callstate.Store
	Ledger Ledger

	// Mic may be nil when capture permission is managed out of band.
	Mic Microphone

	// Ringtone may be nil; a no-op player is used.
	Ringtone Ringtone

	Clock  func() time.Time
	Logger *slog.Logger
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		userID:      opts.UserID,
		loader:      opts.Loader,
		store:       opts.Store,
		ledger:      opts.Ledger,
		mic:         opts.Mic,
		ringtone:    opts.Ringtone,
		clock:       opts.Clock,
		log:         opts.Logger,
		notifyAsync: true,
		rootCtx:     context.Background(),
		status:      callstate.StatusIdle,
		// Recording defaults on; flipped locally before any backend ack.
		recording: true,
	}
	if m.ringtone == nil {
		m.ringtone = NoopRingtone{}
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

// Start runs the bootstrap sequence: hydrate persisted state, load the SDK,
// register the event handler, request the microphone opportunistically, and
// initialize the SDK. Each step can fail independently; a load or init
// failure is fatal to the session and surfaced as the banner error.
func (m *Manager) Start(ctx context.Context) error {
	// Hydrate before anything can fail so a restarted process shows the
	// last known call state immediately instead of flashing idle.
	m.mu.Lock()
	m.rootCtx = ctx
	if saved := m.store.LoadCurrentCall(ctx, m.userID); saved != nil {
		m.current = saved
		m.status = saved.Status
	}
	if pending := m.store.LoadPendingRequest(ctx, m.userID); pending != nil {
		m.pending = pending
	}
	m.mu.Unlock()

	if err := m.loader.Load(ctx); err != nil {
		m.setError("Failed to load calling service")
		return err
	}
	client, err := m.loader.Client()
	if err != nil {
		m.setError("Failed to load calling service")
		return err
	}

	m.mu.Lock()
	m.client = client
	m.sdkLoaded = true
	m.mu.Unlock()

	// Handlers must be registered before Init; events fired during Init
	// (SDKReady at minimum) would otherwise be lost.
	client.On(m.handleEvent)

	// Opportunistic permission grab. Refusal here is not fatal; the hard
	// failure is deferred to call time.
	if m.mic != nil {
		if err := m.mic.Request(ctx); err != nil {
			m.log.Warn("microphone permission not granted at startup", "err", err)
			m.mu.Lock()
			m.micDenied = true
			m.mu.Unlock()
		}
	}

	if err := client.Init(ctx, voximplant.InitConfig{
		MicRequired:         true,
		VideoSupport:        false,
		ProgressTone:        true,
		ProgressToneCountry: "US",
	}); err != nil {
		m.setError("Failed to initialize calling service")
		return fmt.Errorf("session: SDK init failed: %w", err)
	}
	return nil
}

// Stop tears down the transport.
func (m *Manager) Stop() {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client != nil {
		client.Disconnect()
	}
}

// handleEvent is the single transition function for client-level events.
func (m *Manager) handleEvent(ev voximplant.Event) {
	switch e := ev.(type) {
	case voximplant.SDKReady:
		m.onSDKReady()
	case voximplant.ConnectionEstablished:
		m.onConnectionEstablished()
	case voximplant.ConnectionFailed:
		m.mu.Lock()
		m.connected = false
		m.mu.Unlock()
		m.log.Error("transport connect failed", "reason", e.Reason)
		m.setError("Connection to calling service failed")
	case voximplant.ConnectionClosed:
		m.mu.Lock()
		m.connected = false
		m.authenticated = false
		m.mu.Unlock()
	case voximplant.AuthResult:
		m.onAuthResult(e)
	case voximplant.IncomingCall:
		m.onIncomingCall(e)
	}
}

func (m *Manager) onSDKReady() {
	m.mu.Lock()
	client := m.client
	ctx := m.rootCtx
	m.mu.Unlock()
	if client == nil {
		return
	}
	if err := client.Connect(ctx); err != nil {
		m.log.Error("transport connect failed", "err", err)
		m.setError("Failed to connect to calling service")
	}
}

func (m *Manager) onConnectionEstablished() {
	m.mu.Lock()
	m.connected = true
	client := m.client
	ctx := m.rootCtx
	m.mu.Unlock()

	creds, err := m.ledger.Token(ctx)
	if err != nil {
		m.log.Error("credential fetch failed", "err", err)
		m.setError("Failed to authenticate calling service")
		return
	}

	switch {
	case creds.Password != "":
		err = client.Login(ctx, creds.UserName, creds.Password)
	case creds.Token != "":
		err = client.LoginWithToken(ctx, creds.UserName, creds.Token)
	default:
		err = errors.New("no authentication credentials provided")
	}
	if err != nil {
		m.log.Error("login failed", "err", err)
		m.setError("Failed to authenticate calling service")
	}
}

func (m *Manager) onAuthResult(e voximplant.AuthResult) {
	m.mu.Lock()
	if e.OK {
		m.authenticated = true
		m.lastErr = ""
		m.drainPendingLocked()
		m.mu.Unlock()
		return
	}
	m.authenticated = false
	m.mu.Unlock()

	msg := "Authentication failed"
	switch e.Code {
	case 401:
		msg = "Invalid username or password"
	case 404:
		msg = "User not found"
	case 402:
		msg = "Account is frozen or inactive"
	}
	m.setError(msg)
}

func (m *Manager) onIncomingCall(e voximplant.IncomingCall) {
	m.mu.Lock()
	if m.current.Live() {
		// Single live-call invariant: a second inbound leg is declined
		// rather than stealing the slot.
		m.mu.Unlock()
		e.Call.Decline()
		return
	}

	number := e.Headers[headerRemoteNum]
	if number == "" {
		number = e.CallerID
	}
	if number == "" {
		number = "Unknown"
	}
	display := e.DisplayName
	if display == "" {
		display = e.Headers[headerRemoteName]
	}

	m.call = e.Call
	// Attach in the same callback that delivered the call object; any gap
	// here could drop an immediate Failed.
	e.Call.On(m.handleCallEvent)

	m.status = callstate.StatusIncoming
	m.current = &callstate.Call{
		ID:                e.Call.ID(),
		PhoneNumber:       number,
		RemoteNumber:      number,
		RemoteDisplayName: display,
		Direction:         callstate.DirectionInbound,
		Status:            callstate.StatusIncoming,
	}
	m.persistCurrentLocked()
	m.mu.Unlock()

	m.ringtone.Play()
}

// handleCallEvent is the single transition function for per-call events.
func (m *Manager) handleCallEvent(ev voximplant.CallEvent) {
	switch e := ev.(type) {
	case voximplant.CallConnected:
		m.onCallConnected()
	case voximplant.CallDisconnected:
		m.onCallDisconnected()
	case voximplant.CallFailed:
		m.onCallFailed(e)
	case voximplant.ProgressToneStart:
		m.mu.Lock()
		if m.status == callstate.StatusConnecting && m.current != nil {
			m.status = callstate.StatusRinging
			m.current.Status = callstate.StatusRinging
			m.persistCurrentLocked()
		}
		m.mu.Unlock()
	case voximplant.ProgressToneStop:
		// Nothing to do; Connected or Failed follows.
	case voximplant.MediaElementCreated:
		if e.Element != nil {
			e.Element.SetVolume(1.0)
			e.Element.Play()
		}
	}
}

func (m *Manager) onCallConnected() {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return
	}
	now := m.clock()
	m.status = callstate.StatusActive
	m.current.Status = callstate.StatusActive
	m.current.StartTime = &now
	callID := m.current.ID
	m.persistCurrentLocked()
	m.mu.Unlock()

	m.ringtone.Stop()
	m.notify("connected", func(ctx context.Context) error {
		return m.ledger.Connected(ctx, callID, now)
	})
}

func (m *Manager) onCallDisconnected() {
	m.mu.Lock()
	endTime := m.clock()
	duration := 0
	callID := ""
	if m.current != nil {
		callID = m.current.ID
		if m.current.StartTime != nil {
			duration = int(endTime.Sub(*m.current.StartTime) / time.Second)
		}
	}
	m.clearCallLocked()
	m.drainPendingLocked()
	m.mu.Unlock()

	m.ringtone.Stop()
	if callID != "" {
		m.notify("ended", func(ctx context.Context) error {
			return m.ledger.Ended(ctx, callID, endTime, duration)
		})
	}
}

func (m *Manager) onCallFailed(e voximplant.CallFailed) {
	var msg string
	switch e.Code {
	case 486:
		msg = "Line busy"
	case 487:
		msg = "Call cancelled"
	case 603:
		msg = "Call declined"
	case 404:
		msg = "Number not found"
	default:
		reason := e.Reason
		if reason == "" {
			reason = fmt.Sprintf("%d", e.Code)
		}
		msg = fmt.Sprintf("Call failed (%s)", reason)
	}

	m.mu.Lock()
	m.lastErr = msg
	m.clearCallLocked()
	m.drainPendingLocked()
	m.mu.Unlock()

	m.ringtone.Stop()
	m.log.Warn("call failed", "code", e.Code, "reason", e.Reason)
}

// clearCallLocked resets every per-call field. Both the normal hangup path
// and the failure path funnel through here so cleanup never runs twice.
func (m *Manager) clearCallLocked() {
	m.status = callstate.StatusIdle
	m.current = nil
	m.call = nil
	m.muted = false
	m.onHold = false
	m.persistCurrentLocked()
}

// InitiateCall starts an outbound call. When the session is not yet
// authenticated the request is queued (single slot, newest wins) and dialed
// automatically once login completes; clicking "call" early is expected
// behavior, not an error.
func (m *Manager) InitiateCall(ctx context.Context, phoneNumber, contactID, contactName string) error {
	if strings.TrimSpace(phoneNumber) == "" {
		return ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initiateLocked(ctx, phoneNumber, contactID, contactName)
}

func (m *Manager) initiateLocked(ctx context.Context, phoneNumber, contactID, contactName string) error {
	if !m.authenticated || m.client == nil {
		req := &callstate.PendingRequest{PhoneNumber: phoneNumber, ContactID: contactID, ContactName: contactName}
		m.pending = req
		m.store.SavePendingRequest(ctx, m.userID, req)
		m.lastErr = "Calling service not ready - call will start when connected"
		return nil
	}
	if m.current.Live() {
		return ErrCallInProgress
	}

	if m.micDenied && m.mic != nil {
		if err := m.mic.Request(ctx); err != nil {
			m.lastErr = "Microphone access denied"
			return ErrMicrophoneDenied
		}
		m.micDenied = false
	}

	clean := stripNonDigits(phoneNumber)
	call, err := m.client.Call(ctx, clean, map[string]string{
		headerContactID:   contactID,
		headerContactName: contactName,
	})
	if err != nil {
		m.log.Error("dial failed", "err", err)
		m.lastErr = "Failed to start call"
		return fmt.Errorf("session: dial failed: %w", err)
	}

	m.call = call
	call.On(m.handleCallEvent)

	m.status = callstate.StatusConnecting
	m.current = &callstate.Call{
		ID:                call.ID(),
		PhoneNumber:       clean,
		RemoteNumber:      clean,
		RemoteDisplayName: contactName,
		ContactID:         contactID,
		ContactName:       contactName,
		Direction:         callstate.DirectionOutbound,
		Status:            callstate.StatusConnecting,
		IsRecording:       m.recording,
	}
	m.persistCurrentLocked()
	m.lastErr = ""

	recording := m.recording
	m.notify("initiate", func(nctx context.Context) error {
		_, err := m.ledger.Initiate(nctx, InitiateRequest{
			PhoneNumber:     clean,
			ContactID:       contactID,
			ContactName:     contactName,
			EnableRecording: recording,
		})
		return err
	})
	return nil
}

// RequestCall asks for a call from anywhere in the app: dialed immediately
// when the session is ready and free, queued otherwise.
func (m *Manager) RequestCall(ctx context.Context, phoneNumber, contactID, contactName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authenticated && !m.current.Live() {
		_ = m.initiateLocked(ctx, phoneNumber, contactID, contactName)
		return
	}
	req := &callstate.PendingRequest{PhoneNumber: phoneNumber, ContactID: contactID, ContactName: contactName}
	m.pending = req
	m.store.SavePendingRequest(ctx, m.userID, req)
}

// drainPendingLocked dials the queued request once the session is
// authenticated and idle. The request is claimed and its slot cleared before
// dialing, so overlapping triggers cannot double-dial.
func (m *Manager) drainPendingLocked() {
	if m.pending == nil || !m.authenticated || m.current.Live() {
		return
	}
	req := m.pending
	m.pending = nil
	m.store.ClearPendingRequest(m.rootCtx, m.userID)
	if err := m.initiateLocked(m.rootCtx, req.PhoneNumber, req.ContactID, req.ContactName); err != nil {
		m.log.Warn("queued call failed to start", "err", err)
	}
}

// EndCall hangs up the live call. State cleanup happens in the Disconnected
// handler, not here, so both hangup directions share one cleanup path.
func (m *Manager) EndCall() {
	m.mu.Lock()
	call := m.call
	m.mu.Unlock()
	if call != nil {
		call.Hangup()
	}
}

// AnswerCall accepts the ringing inbound call. The microphone is re-checked
// first; a refusal fails this answer only and the call keeps ringing.
func (m *Manager) AnswerCall(ctx context.Context) error {
	m.mu.Lock()
	if m.call == nil || m.status != callstate.StatusIncoming {
		m.mu.Unlock()
		return nil
	}
	if m.micDenied && m.mic != nil {
		if err := m.mic.Request(ctx); err != nil {
			m.lastErr = "Microphone access denied"
			m.mu.Unlock()
			return ErrMicrophoneDenied
		}
		m.micDenied = false
	}
	call := m.call
	m.mu.Unlock()

	call.Answer()
	m.ringtone.Stop()
	return nil
}

// RejectCall declines the ringing inbound call and clears the session
// immediately; a never-connected leg sends no Disconnected event.
func (m *Manager) RejectCall() {
	m.mu.Lock()
	if m.call == nil || m.status != callstate.StatusIncoming {
		m.mu.Unlock()
		return
	}
	call := m.call
	m.clearCallLocked()
	m.drainPendingLocked()
	m.mu.Unlock()

	call.Decline()
	m.ringtone.Stop()
}

// ToggleMute flips the microphone on the live call and syncs the ledger.
func (m *Manager) ToggleMute() {
	m.mu.Lock()
	if m.call == nil {
		m.mu.Unlock()
		return
	}
	m.muted = !m.muted
	muted := m.muted
	call := m.call
	callID := ""
	if m.current != nil {
		callID = m.current.ID
	}
	m.mu.Unlock()

	if muted {
		call.MuteMicrophone()
	} else {
		call.UnmuteMicrophone()
	}
	if callID != "" {
		m.notify("mute", func(ctx context.Context) error {
			return m.ledger.SetMute(ctx, callID, muted)
		})
	}
}

// ToggleHold parks or resumes the live call and syncs the ledger.
func (m *Manager) ToggleHold() {
	m.mu.Lock()
	if m.call == nil {
		m.mu.Unlock()
		return
	}
	m.onHold = !m.onHold
	onHold := m.onHold
	call := m.call
	callID := ""
	if m.current != nil {
		callID = m.current.ID
	}
	m.mu.Unlock()

	call.SetActive(!onHold)
	if callID != "" {
		m.notify("hold", func(ctx context.Context) error {
			return m.ledger.SetHold(ctx, callID, onHold)
		})
	}
}

// ToggleRecording flips the local recording flag and informs the backend.
// Recording itself happens vendor-side; this is optimistic UI state with no
// server acknowledgment, preserved from the original product behavior.
func (m *Manager) ToggleRecording() {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return
	}
	m.recording = !m.recording
	m.current.IsRecording = m.recording
	start := m.recording
	callID := m.current.ID
	m.persistCurrentLocked()
	m.mu.Unlock()

	m.notify("recording", func(ctx context.Context) error {
		return m.ledger.SetRecording(ctx, callID, start)
	})
}

// SendDTMF transmits one touch-tone digit. Valid only while the call is
// active; otherwise it is silently ignored, never queued.
func (m *Manager) SendDTMF(digit string) {
	m.mu.Lock()
	call := m.call
	active := m.status == callstate.StatusActive
	m.mu.Unlock()
	if call != nil && active {
		call.SendTone(digit)
	}
}

// TransferCall records a transfer against the ledger. The SDK-level
// transfer mechanics are vendor-specific and handled server-side.
func (m *Manager) TransferCall(transferTo string) error {
	if strings.TrimSpace(transferTo) == "" {
		return ErrInvalidArgument
	}
	m.mu.Lock()
	callID := ""
	if m.current != nil {
		callID = m.current.ID
	}
	m.mu.Unlock()
	if callID == "" {
		return nil
	}
	m.notify("transfer", func(ctx context.Context) error {
		return m.ledger.Transfer(ctx, callID, transferTo)
	})
	return nil
}

// AddNote attaches a note to the live call's ledger record.
func (m *Manager) AddNote(text string) {
	m.mu.Lock()
	callID := ""
	if m.current != nil {
		callID = m.current.ID
	}
	m.mu.Unlock()
	if callID == "" || strings.TrimSpace(text) == "" {
		return
	}
	at := m.clock()
	m.notify("note", func(ctx context.Context) error {
		return m.ledger.AddNote(ctx, callID, text, at)
	})
}

// Snapshot is the externally visible manager state, safe to render from.
type Snapshot struct {
	SDKLoaded     bool
	Connected     bool
	Authenticated bool

	Status    callstate.Status
	Muted     bool
	OnHold    bool
	Recording bool

	Current *callstate.Call
	Pending *callstate.PendingRequest

	Error string
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		SDKLoaded:     m.sdkLoaded,
		Connected:     m.connected,
		Authenticated: m.authenticated,
		Status:        m.status,
		Muted:         m.muted,
		OnHold:        m.onHold,
		Recording:     m.recording,
		Error:         m.lastErr,
	}
	if m.current != nil {
		c := *m.current
		s.Current = &c
	}
	if m.pending != nil {
		p := *m.pending
		s.Pending = &p
	}
	return s
}

func (m *Manager) setError(msg string) {
	m.mu.Lock()
	m.lastErr = msg
	m.mu.Unlock()
}

func (m *Manager) persistCurrentLocked() {
	m.store.SaveCurrentCall(m.rootCtx, m.userID, m.current)
}

// notify runs a best-effort ledger call. Failures never roll back or block
// the in-progress call; the live call is authoritative over the ledger.
func (m *Manager) notify(op string, fn func(ctx context.Context) error) {
	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			m.log.Warn("ledger sync failed", "op", op, "err", err)
		}
	}
	if m.notifyAsync {
		go run()
		return
	}
	run()
}

// stripNonDigits reduces a display number to the bare digit string the
// vendor transport dials.
func stripNonDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
