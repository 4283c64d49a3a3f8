// Package realtime drives the interview session: the connection
// lifecycle state machine, the control-channel event interpreter, and
// the agent handoff protocol.
package realtime

import "sync"

// Status is the connection lifecycle state.
type Status string

const (
	StatusDisconnected Status = "DISCONNECTED"
	StatusConnecting   Status = "CONNECTING"
	StatusConnected    Status = "CONNECTED"
)

// SessionState is the single mutable session record shared by the
// connection manager and the event interpreter. It is passed by
// explicit reference into both; there are no ambient globals.
type SessionState struct {
	mu           sync.Mutex
	status       Status
	activeAgent  string
	channelReady bool
}

// NewSessionState creates a disconnected session state.
func NewSessionState() *SessionState {
	return &SessionState{status: StatusDisconnected}
}

// Status returns the lifecycle state.
func (s *SessionState) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *SessionState) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// compareAndSwapStatus transitions from→to atomically; a false return
// means a concurrent intent already moved the state machine, and the
// caller must reject rather than queue.
func (s *SessionState) compareAndSwapStatus(from, to Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != from {
		return false
	}
	s.status = to
	return true
}

// ActiveAgent returns the name of the agent currently holding the
// conversation.
func (s *SessionState) ActiveAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeAgent
}

// SetActiveAgent records an agent switch. Callers must validate the
// transition against the registry first.
func (s *SessionState) SetActiveAgent(name string) {
	s.mu.Lock()
	s.activeAgent = name
	s.mu.Unlock()
}

// ChannelReady reports whether outbound sends are permitted.
func (s *SessionState) ChannelReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelReady
}

func (s *SessionState) setChannelReady(ready bool) {
	s.mu.Lock()
	s.channelReady = ready
	s.mu.Unlock()
}
