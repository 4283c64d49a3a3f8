package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/vango-go/mensetsu/pkg/core"
)

// ManagerDeps wires the connection manager's collaborators.
type ManagerDeps struct {
	Logger      *slog.Logger
	State       *SessionState
	Credentials CredentialProvider
	Transport   Transport
	NewSink     SinkFactory

	// OnMessage receives every inbound control-channel payload, in
	// arrival order. Wired before the channel opens.
	OnMessage func(payload []byte)
}

// Manager owns the peer connection and its control data channel and
// drives the DISCONNECTED → CONNECTING → CONNECTED state machine. It
// is a dumb pipe: no protocol interpretation happens here.
type Manager struct {
	logger    *slog.Logger
	state     *SessionState
	creds     CredentialProvider
	transport Transport
	newSink   SinkFactory
	onMessage func(payload []byte)

	mu      sync.Mutex
	attempt uint64
	channel DataChannel
	sink    AudioSink
}

// NewManager creates a connection manager.
func NewManager(deps ManagerDeps) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:    logger,
		state:     deps.State,
		creds:     deps.Credentials,
		transport: deps.Transport,
		newSink:   deps.NewSink,
		onMessage: deps.OnMessage,
	}
}

// SetOnMessage wires the inbound payload handler. The manager and the
// event interpreter reference each other, so the handler may be set
// after construction; it must be wired before Connect.
func (m *Manager) SetOnMessage(fn func(payload []byte)) {
	m.mu.Lock()
	m.onMessage = fn
	m.mu.Unlock()
}

// Connect performs credential fetch, audio sink acquisition, and
// channel negotiation, in that order. It is a no-op unless the state
// is DISCONNECTED; a concurrent second connect is rejected by the
// state-machine guard, never queued. Failures return the session to
// DISCONNECTED and are surfaced to the caller without retry.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.state.compareAndSwapStatus(StatusDisconnected, StatusConnecting) {
		m.logger.Debug("connect ignored", "status", m.state.Status())
		return nil
	}

	m.mu.Lock()
	m.attempt++
	attempt := m.attempt
	onMessage := m.onMessage
	m.mu.Unlock()

	credential, err := m.creds.MintCredential(ctx)
	if err != nil {
		m.logger.Error("error.no_ephemeral_key", "error", err)
		m.abort(attempt)
		return err
	}

	sink, err := m.newSink()
	if err != nil {
		m.abort(attempt)
		return core.NewTransportSetupError("acquire audio sink: " + err.Error())
	}

	channel, err := m.transport.Dial(ctx, credential, ChannelHandlers{
		OnOpen: func() {
			m.logger.Debug("data_channel.open")
		},
		OnClose: func() {
			m.logger.Debug("data_channel.close")
			m.channelClosed(attempt)
		},
		OnError: func(err error) {
			m.logger.Error("data_channel.error", "error", err)
		},
		OnMessage: onMessage,
	})
	if err != nil {
		sink.Flush()
		m.abort(attempt)
		return core.NewTransportSetupError(err.Error())
	}

	m.mu.Lock()
	if m.attempt != attempt {
		// Disconnected while negotiating; release the fresh transport.
		m.mu.Unlock()
		_ = channel.Close()
		sink.Flush()
		return core.NewTransportSetupError("connect aborted")
	}
	m.channel = channel
	m.sink = sink
	m.mu.Unlock()

	m.state.setChannelReady(true)
	m.state.setStatus(StatusConnected)
	return nil
}

func (m *Manager) abort(attempt uint64) {
	m.mu.Lock()
	superseded := m.attempt != attempt
	m.mu.Unlock()
	if superseded {
		return
	}
	m.state.setChannelReady(false)
	m.state.compareAndSwapStatus(StatusConnecting, StatusDisconnected)
}

func (m *Manager) channelClosed(attempt uint64) {
	m.mu.Lock()
	superseded := m.attempt != attempt
	m.mu.Unlock()
	if superseded {
		return
	}
	// Transport loss is terminal for the session; the caller must
	// connect again explicitly.
	m.Disconnect()
}

// Send serializes the event and transmits it unmodified. While the
// channel is not open the send fails observably: a diagnostic is
// logged and a typed error returned, but nothing is queued.
func (m *Manager) Send(event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return core.NewInvalidRequestError("encode client event: " + err.Error())
	}
	eventType := peekType(payload)

	m.mu.Lock()
	channel := m.channel
	m.mu.Unlock()

	if channel == nil || !m.state.ChannelReady() {
		m.logger.Error("error.data_channel_not_open", "attempted_event", eventType)
		return core.NewChannelNotOpenError(eventType)
	}

	m.logger.Debug("client event", "type", eventType)
	if err := channel.Send(payload); err != nil {
		m.logger.Error("error.data_channel_send", "type", eventType, "error", err)
		return core.NewChannelNotOpenError(eventType)
	}
	return nil
}

// Disconnect tears down the channel and releases the audio sink,
// returning to DISCONNECTED. Safe to call in any state, repeatedly,
// including mid-CONNECTING.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.attempt++
	channel := m.channel
	sink := m.sink
	m.channel = nil
	m.sink = nil
	m.mu.Unlock()

	m.state.setChannelReady(false)
	m.state.setStatus(StatusDisconnected)

	if channel != nil {
		_ = channel.Close()
	}
	if sink != nil {
		sink.Flush()
	}
}

// PlayAudio forwards assistant speech to the acquired sink.
func (m *Manager) PlayAudio(pcm []byte) {
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()
	if sink != nil {
		sink.Play(pcm)
	}
}

// FlushAudio drops buffered assistant speech, cutting playback off.
func (m *Manager) FlushAudio() {
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()
	if sink != nil {
		sink.Flush()
	}
}

func peekType(payload []byte) string {
	var envelope struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(payload, &envelope)
	return envelope.Type
}
