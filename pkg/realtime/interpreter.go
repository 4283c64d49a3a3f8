package realtime

import (
	"encoding/base64"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vango-go/mensetsu/pkg/agents"
	"github.com/vango-go/mensetsu/pkg/realtime/protocol"
	"github.com/vango-go/mensetsu/pkg/transcript"
)

// AudioPlayer receives decoded assistant speech. *Manager satisfies
// it.
type AudioPlayer interface {
	PlayAudio(pcm []byte)
	FlushAudio()
}

// InterpreterDeps wires the event interpreter's collaborators.
type InterpreterDeps struct {
	Logger   *slog.Logger
	State    *SessionState
	Store    TranscriptStore
	Registry *agents.Registry
	Send     func(event any) error
	Audio    AudioPlayer
	Voice    string

	// Now and NewItemID are injectable for tests.
	Now       func() time.Time
	NewItemID func() string
}

// TranscriptStore is the mutation surface the interpreter needs from
// the transcript log.
type TranscriptStore interface {
	Append(item transcript.Item) error
	AppendBreadcrumb(title string, hidden bool, data map[string]any) error
	PatchText(itemID, delta string) error
	MarkDone(itemID string) error
	SetHidden(itemID string, hidden bool) error
	Get(itemID string) (transcript.Item, bool)
	FindLast(pred func(transcript.Item) bool) (transcript.Item, bool)
}

// Interpreter consumes inbound control-channel events, mutates the
// transcript, and executes side effects: outbound events and agent
// switches. UI intents enter through the exported intent methods.
// All mutations serialize on one mutex, so exactly one transcript or
// state change is in flight at a time.
type Interpreter struct {
	logger   *slog.Logger
	state    *SessionState
	store    TranscriptStore
	registry *agents.Registry
	send     func(event any) error
	audio    AudioPlayer
	voice    string
	now      func() time.Time
	newID    func() string

	mu sync.Mutex
}

// NewInterpreter creates the interpreter and seeds the active agent
// with the registry entry point when none is set.
func NewInterpreter(deps InterpreterDeps) *Interpreter {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	newID := deps.NewItemID
	if newID == nil {
		newID = newItemID
	}
	i := &Interpreter{
		logger:   logger,
		state:    deps.State,
		store:    deps.Store,
		registry: deps.Registry,
		send:     deps.Send,
		audio:    deps.Audio,
		voice:    deps.Voice,
		now:      now,
		newID:    newID,
	}
	if i.state.ActiveAgent() == "" {
		i.state.SetActiveAgent(deps.Registry.Entry().Name)
	}
	return i
}

// Fresh item identifiers match the 32-character form the service
// accepts for client-created items.
func newItemID() string {
	id := uuid.NewString()
	if len(id) > 32 {
		id = id[:32]
	}
	return id
}

// HandleRaw decodes and dispatches one inbound frame. Protocol
// anomalies are absorbed and logged, never propagated: a partial or
// out-of-order event stream is expected under real network
// conditions.
func (i *Interpreter) HandleRaw(payload []byte) {
	event, err := protocol.DecodeServerEvent(payload)
	if err != nil {
		i.logger.Error("server event decode failed", "error", err)
		return
	}
	i.Handle(event)
}

// Handle dispatches one decoded server event.
func (i *Interpreter) Handle(event protocol.ServerEvent) {
	i.mu.Lock()
	defer i.mu.Unlock()

	switch e := event.(type) {
	case protocol.SessionAckEvent:
		i.logger.Debug("server event", "type", e.Type, "session_id", e.SessionID)
	case protocol.ItemCreatedEvent:
		i.handleItemCreated(e.Item)
	case protocol.TranscriptionCompletedEvent:
		i.handleTranscriptionCompleted(e)
	case protocol.TranscriptDeltaEvent:
		i.absorb(i.store.PatchText(e.ItemID, e.Delta), "patch transcript delta")
	case protocol.AudioDeltaEvent:
		i.handleAudioDelta(e)
	case protocol.OutputItemDoneEvent:
		i.absorb(i.store.MarkDone(e.Item.ID), "mark item done")
	case protocol.ResponseDoneEvent:
		i.handleResponseDone(e)
	case protocol.ErrorEvent:
		i.logger.Error("server event", "type", "error", "code", e.Code, "message", e.Message)
		_ = i.store.AppendBreadcrumb("Error: "+e.Message, false, map[string]any{"code": e.Code})
	case protocol.UnknownEvent:
		i.logger.Debug("server event", "type", e.Type, "handled", false)
		_ = i.store.AppendBreadcrumb("unknown event: "+e.Type, true, nil)
	}
}

func (i *Interpreter) handleItemCreated(item protocol.ConversationItem) {
	if item.Type != "" && item.Type != "message" {
		return
	}
	if _, exists := i.store.Get(item.ID); exists {
		// Local echo of a turn this client already appended.
		return
	}

	text := item.Text()
	role := transcript.Role(item.Role)
	entry := transcript.Item{
		ItemID: item.ID,
		Kind:   transcript.KindMessage,
		Role:   role,
		Title:  text,
		Hidden: text == agents.NextQuestionSentinel,
	}
	if role == transcript.RoleUser && text != "" {
		// User items arrive whole.
		entry.Status = transcript.StatusDone
	}
	i.absorb(i.store.Append(entry), "append created item")
}

func (i *Interpreter) handleTranscriptionCompleted(e protocol.TranscriptionCompletedEvent) {
	text := strings.TrimSuffix(e.Transcript, "\n")
	i.absorb(i.store.PatchText(e.ItemID, text), "patch transcription")
	i.absorb(i.store.MarkDone(e.ItemID), "complete transcription")
}

func (i *Interpreter) handleAudioDelta(e protocol.AudioDeltaEvent) {
	if i.audio == nil {
		return
	}
	pcm, err := base64.StdEncoding.DecodeString(e.AudioB64)
	if err != nil {
		i.logger.Error("decode audio delta", "item_id", e.ItemID, "error", err)
		return
	}
	i.audio.PlayAudio(pcm)
}

func (i *Interpreter) handleResponseDone(e protocol.ResponseDoneEvent) {
	for _, item := range e.Output {
		if item.ID != "" {
			i.absorb(i.store.MarkDone(item.ID), "mark response item done")
		}
		args, isHandoff, err := protocol.ParseHandoff(item)
		if err != nil {
			i.logger.Error("malformed handoff request", "error", err)
			_ = i.store.AppendBreadcrumb("handoff rejected: malformed request", true, map[string]any{"error": err.Error()})
			continue
		}
		if isHandoff {
			i.handleHandoff(args)
		}
	}
}

// handleHandoff validates and performs an agent switch. On success the
// switch is recorded, the active agent changes, and a session
// configuration carrying the new agent's instructions goes out in the
// same critical section, followed by a simulated greeting so the new
// agent speaks immediately; turn detection is disabled, so without the
// trigger the model would stay silent until the next user turn. On
// failure the active agent is unchanged.
func (i *Interpreter) handleHandoff(args protocol.HandoffArgs) {
	from := i.state.ActiveAgent()
	target := args.DestinationAgent

	if _, err := i.registry.Resolve(target); err != nil {
		i.logger.Warn("handoff rejected", "from", from, "to", target, "reason", "unknown agent")
		_ = i.store.AppendBreadcrumb("handoff rejected: unknown agent "+target, true, map[string]any{"from": from, "to": target})
		return
	}
	if !i.registry.CanHandoff(from, target) {
		i.logger.Warn("handoff rejected", "from", from, "to", target, "reason", "not a declared downstream")
		_ = i.store.AppendBreadcrumb("handoff rejected: "+from+" -> "+target, true, map[string]any{"from": from, "to": target})
		return
	}

	i.logger.Info("agent handoff", "from", from, "to", target, "rationale", args.Rationale)
	_ = i.store.AppendBreadcrumb("Agent: "+target, true, map[string]any{"from": from, "rationale": args.Rationale})
	i.state.SetActiveAgent(target)
	i.updateSessionLocked(true)
}

// Bootstrap announces the active agent and pushes the initial session
// configuration after a successful connect, then triggers the agent's
// opening utterance with a simulated greeting.
func (i *Interpreter) Bootstrap() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	name := i.state.ActiveAgent()
	_ = i.store.AppendBreadcrumb("Agent: "+name, false, nil)
	return i.updateSessionLocked(true)
}

// UpdateSession re-sends the active agent's instructions and tools
// with the fixed transport parameters. Issuing this after every agent
// switch keeps the remote model's directive text in lockstep with the
// active agent.
func (i *Interpreter) UpdateSession(triggerGreeting bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.updateSessionLocked(triggerGreeting)
}

func (i *Interpreter) updateSessionLocked(triggerGreeting bool) error {
	agent, err := i.registry.Resolve(i.state.ActiveAgent())
	if err != nil {
		i.logger.Error("session update skipped", "error", err)
		return err
	}

	// Any buffered input audio belongs to the previous configuration.
	if err := i.send(protocol.Basic{Type: protocol.TypeInputAudioBufferClear}); err != nil {
		return err
	}
	if err := i.send(protocol.NewSessionUpdate(agent, i.voice)); err != nil {
		return err
	}
	if triggerGreeting {
		return i.simulatedUserTurnLocked("hi", true)
	}
	return nil
}

// SendUserText interrupts any in-progress assistant speech, then
// submits the typed text as a completed user turn and requests a
// response.
func (i *Interpreter) SendUserText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cancelAssistantSpeechLocked()
	return i.simulatedUserTurnLocked(text, false)
}

// AdvanceNextQuestion submits the advance sentinel as a hidden user
// turn; agents are instructed to treat it as "move on without further
// questions".
func (i *Interpreter) AdvanceNextQuestion() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.simulatedUserTurnLocked(agents.NextQuestionSentinel, true)
}

func (i *Interpreter) simulatedUserTurnLocked(text string, hidden bool) error {
	id := i.newID()
	i.absorb(i.store.Append(transcript.Item{
		ItemID: id,
		Kind:   transcript.KindMessage,
		Role:   transcript.RoleUser,
		Title:  text,
		Status: transcript.StatusDone,
		Hidden: hidden,
	}), "append simulated user turn")

	if err := i.send(protocol.NewUserMessage(id, text)); err != nil {
		return err
	}
	return i.send(protocol.Basic{Type: protocol.TypeResponseCreate})
}

// CancelAssistantSpeech truncates the most recent assistant item when
// it is still speaking, so a new user turn does not race with it. The
// truncate offset is the elapsed time since the item's creation.
func (i *Interpreter) CancelAssistantSpeech() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cancelAssistantSpeechLocked()
}

func (i *Interpreter) cancelAssistantSpeechLocked() error {
	last, ok := i.store.FindLast(func(item transcript.Item) bool {
		return item.Kind == transcript.KindMessage && item.Role == transcript.RoleAssistant
	})
	if !ok {
		i.logger.Debug("no assistant message to cancel")
		return nil
	}
	if last.Status == transcript.StatusDone {
		return nil
	}

	elapsed := i.now().Sub(last.CreatedAt).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}
	if err := i.send(protocol.NewItemTruncate(last.ItemID, elapsed)); err != nil {
		return err
	}
	if err := i.send(protocol.Basic{Type: protocol.TypeResponseCancel}); err != nil {
		return err
	}
	if i.audio != nil {
		i.audio.FlushAudio()
	}
	return nil
}

// PushToTalkStart cancels any assistant speech and clears the input
// audio buffer for a fresh utterance.
func (i *Interpreter) PushToTalkStart() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.cancelAssistantSpeechLocked(); err != nil {
		return err
	}
	return i.send(protocol.Basic{Type: protocol.TypeInputAudioBufferClear})
}

// PushToTalkStop commits the buffered utterance and requests a
// response.
func (i *Interpreter) PushToTalkStop() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.send(protocol.Basic{Type: protocol.TypeInputAudioBufferCommit}); err != nil {
		return err
	}
	return i.send(protocol.Basic{Type: protocol.TypeResponseCreate})
}

// SendAudioFrame forwards one PCM16 microphone frame.
func (i *Interpreter) SendAudioFrame(pcm []byte) error {
	return i.send(protocol.InputAudioBufferAppend{
		Type:  protocol.TypeInputAudioBufferAppend,
		Audio: base64.StdEncoding.EncodeToString(pcm),
	})
}

func (i *Interpreter) absorb(err error, op string) {
	if err == nil {
		return
	}
	// Duplicate or missing transcript mutations are expected under a
	// partial event feed; they never crash the interpreter.
	i.logger.Debug("transcript mutation ignored", "op", op, "error", err)
}

// InterviewComplete reports whether the most recent completed
// assistant message contains the closing phrase. Detection is a pure
// function of the transcript tail; it does not depend on which agent
// produced the line, since handoffs may reorder who utters it.
func InterviewComplete(store TranscriptStore) bool {
	last, ok := store.FindLast(func(item transcript.Item) bool {
		return item.Kind == transcript.KindMessage && item.Role == transcript.RoleAssistant && item.Status == transcript.StatusDone
	})
	if !ok {
		return false
	}
	return strings.Contains(last.Title, agents.ClosingPhrase)
}
