// Package protocol defines the JSON event schema carried on the
// control data channel. Every frame is an object with a "type"
// discriminator; decoding tolerates unknown fields and maps unknown
// types to an explicit fallback variant instead of failing, since a
// partial or reordered event feed is expected under real network
// conditions.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vango-go/mensetsu/pkg/agents"
)

// Client (outbound) event types.
const (
	TypeSessionUpdate          = "session.update"
	TypeItemCreate             = "conversation.item.create"
	TypeItemTruncate           = "conversation.item.truncate"
	TypeResponseCreate         = "response.create"
	TypeResponseCancel         = "response.cancel"
	TypeInputAudioBufferAppend = "input_audio_buffer.append"
	TypeInputAudioBufferClear  = "input_audio_buffer.clear"
	TypeInputAudioBufferCommit = "input_audio_buffer.commit"
)

// Server (inbound) event types.
const (
	TypeSessionCreated         = "session.created"
	TypeSessionUpdated         = "session.updated"
	TypeItemCreated            = "conversation.item.created"
	TypeTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	TypeTranscriptDelta        = "response.audio_transcript.delta"
	TypeAudioDelta             = "response.audio.delta"
	TypeOutputItemDone         = "response.output_item.done"
	TypeResponseDone           = "response.done"
	TypeError                  = "error"
)

// Fixed transport parameters sent with every session configuration.
const (
	AudioFormatPCM16   = "pcm16"
	TranscriptionModel = "whisper-1"
)

// ItemContent is one content block of a conversation item.
type ItemContent struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// ConversationItem is a conversation entry on the wire. Message items
// carry role and content; function_call items carry name, arguments,
// and call ID.
type ConversationItem struct {
	ID        string        `json:"id,omitempty"`
	Type      string        `json:"type,omitempty"`
	Role      string        `json:"role,omitempty"`
	Status    string        `json:"status,omitempty"`
	Content   []ItemContent `json:"content,omitempty"`
	Name      string        `json:"name,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
}

// Text joins the item's content blocks into display text, preferring
// explicit text and falling back to audio transcripts.
func (i ConversationItem) Text() string {
	var b strings.Builder
	for _, content := range i.Content {
		if content.Text != "" {
			b.WriteString(content.Text)
			continue
		}
		b.WriteString(content.Transcript)
	}
	return b.String()
}

// TranscriptionConfig selects the transcription model for user audio.
type TranscriptionConfig struct {
	Model string `json:"model"`
}

// SessionConfig is the session payload of a session.update event.
// TurnDetection stays a pointer so the disabled state serializes as an
// explicit null.
type SessionConfig struct {
	Modalities              []string             `json:"modalities"`
	Instructions            string               `json:"instructions"`
	Voice                   string               `json:"voice,omitempty"`
	InputAudioFormat        string               `json:"input_audio_format"`
	OutputAudioFormat       string               `json:"output_audio_format"`
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription"`
	TurnDetection           json.RawMessage      `json:"turn_detection"`
	Tools                   []agents.Tool        `json:"tools"`
}

// SessionUpdate carries the active agent's directive text and tools to
// the remote model. This is the only path by which instructions reach
// the model.
type SessionUpdate struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

// NewSessionUpdate builds the session configuration for an agent with
// the fixed transport parameters.
func NewSessionUpdate(agent agents.Agent, voice string) SessionUpdate {
	tools := agent.Tools
	if tools == nil {
		tools = []agents.Tool{}
	}
	return SessionUpdate{
		Type: TypeSessionUpdate,
		Session: SessionConfig{
			Modalities:              []string{"text", "audio"},
			Instructions:            agent.Instructions,
			Voice:                   voice,
			InputAudioFormat:        AudioFormatPCM16,
			OutputAudioFormat:       AudioFormatPCM16,
			InputAudioTranscription: &TranscriptionConfig{Model: TranscriptionModel},
			TurnDetection:           json.RawMessage("null"),
			Tools:                   tools,
		},
	}
}

// ItemCreate asks the server to append a conversation item.
type ItemCreate struct {
	Type string           `json:"type"`
	Item ConversationItem `json:"item"`
}

// NewUserMessage builds an item-create event for a typed or simulated
// user turn.
func NewUserMessage(itemID, text string) ItemCreate {
	return ItemCreate{
		Type: TypeItemCreate,
		Item: ConversationItem{
			ID:      itemID,
			Type:    "message",
			Role:    "user",
			Content: []ItemContent{{Type: "input_text", Text: text}},
		},
	}
}

// ItemTruncate cuts off a currently-speaking assistant item at the
// given elapsed audio offset.
type ItemTruncate struct {
	Type         string `json:"type"`
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	AudioEndMS   int64  `json:"audio_end_ms"`
}

// NewItemTruncate builds a truncate event for the referenced item.
func NewItemTruncate(itemID string, audioEndMS int64) ItemTruncate {
	return ItemTruncate{Type: TypeItemTruncate, ItemID: itemID, AudioEndMS: audioEndMS}
}

// Basic carries only a type discriminator; used for trigger and
// buffer-control events.
type Basic struct {
	Type string `json:"type"`
}

// InputAudioBufferAppend carries one base64 PCM16 microphone frame.
type InputAudioBufferAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// ServerEvent is an inbound event decoded from the control channel.
type ServerEvent interface {
	serverEventType() string
}

// SessionAckEvent confirms negotiated session parameters. It has no
// transcript effect.
type SessionAckEvent struct {
	Type      string
	SessionID string
}

func (e SessionAckEvent) serverEventType() string { return e.Type }

// ItemCreatedEvent announces a new conversation item.
type ItemCreatedEvent struct {
	Item ConversationItem
}

func (e ItemCreatedEvent) serverEventType() string { return TypeItemCreated }

// TranscriptionCompletedEvent delivers the final transcript of a user
// audio item.
type TranscriptionCompletedEvent struct {
	ItemID     string
	Transcript string
}

func (e TranscriptionCompletedEvent) serverEventType() string { return TypeTranscriptionCompleted }

// TranscriptDeltaEvent is an incremental fragment of assistant text.
type TranscriptDeltaEvent struct {
	ItemID string
	Delta  string
}

func (e TranscriptDeltaEvent) serverEventType() string { return TypeTranscriptDelta }

// AudioDeltaEvent is a base64 chunk of assistant speech audio.
type AudioDeltaEvent struct {
	ItemID   string
	AudioB64 string
}

func (e AudioDeltaEvent) serverEventType() string { return TypeAudioDelta }

// OutputItemDoneEvent marks a response item as complete.
type OutputItemDoneEvent struct {
	Item ConversationItem
}

func (e OutputItemDoneEvent) serverEventType() string { return TypeOutputItemDone }

// ResponseDoneEvent closes a model response; its output items carry
// any function calls, including handoff requests.
type ResponseDoneEvent struct {
	Output []ConversationItem
}

func (e ResponseDoneEvent) serverEventType() string { return TypeResponseDone }

// ErrorEvent is a transport-level error report. It never changes
// session state.
type ErrorEvent struct {
	Code    string
	Message string
}

func (e ErrorEvent) serverEventType() string { return TypeError }

// UnknownEvent preserves frames with an unrecognized type.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) serverEventType() string { return e.Type }

// DecodeServerEvent decodes one inbound control-channel frame. Unknown
// event types decode to UnknownEvent; only malformed JSON or a missing
// discriminator is an error.
func DecodeServerEvent(data []byte) (ServerEvent, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, fmt.Errorf("event frame missing type")
	}

	switch typ {
	case TypeSessionCreated, TypeSessionUpdated:
		var frame struct {
			Session struct {
				ID string `json:"id"`
			} `json:"session"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return SessionAckEvent{Type: typ, SessionID: frame.Session.ID}, nil
	case TypeItemCreated:
		var frame struct {
			Item ConversationItem `json:"item"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ItemCreatedEvent{Item: frame.Item}, nil
	case TypeTranscriptionCompleted:
		var frame struct {
			ItemID     string `json:"item_id"`
			Transcript string `json:"transcript"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return TranscriptionCompletedEvent{ItemID: frame.ItemID, Transcript: frame.Transcript}, nil
	case TypeTranscriptDelta:
		var frame struct {
			ItemID string `json:"item_id"`
			Delta  string `json:"delta"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return TranscriptDeltaEvent{ItemID: frame.ItemID, Delta: frame.Delta}, nil
	case TypeAudioDelta:
		var frame struct {
			ItemID string `json:"item_id"`
			Delta  string `json:"delta"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return AudioDeltaEvent{ItemID: frame.ItemID, AudioB64: frame.Delta}, nil
	case TypeOutputItemDone:
		var frame struct {
			Item ConversationItem `json:"item"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return OutputItemDoneEvent{Item: frame.Item}, nil
	case TypeResponseDone:
		var frame struct {
			Response struct {
				Output []ConversationItem `json:"output"`
			} `json:"response"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ResponseDoneEvent{Output: frame.Response.Output}, nil
	case TypeError:
		var frame struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		return ErrorEvent{Code: frame.Error.Code, Message: frame.Error.Message}, nil
	default:
		return UnknownEvent{Type: typ, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

// HandoffArgs are the decoded arguments of a transfer function call.
type HandoffArgs struct {
	DestinationAgent string `json:"destination_agent"`
	Rationale        string `json:"rationale_for_transfer"`
}

// ParseHandoff extracts a handoff request from a function_call item.
// It returns ok=false when the item is not a transfer call; a transfer
// call with malformed arguments yields an error.
func ParseHandoff(item ConversationItem) (HandoffArgs, bool, error) {
	if item.Type != "function_call" || item.Name != agents.TransferToolName {
		return HandoffArgs{}, false, nil
	}
	var args HandoffArgs
	if item.Arguments != "" {
		if err := json.Unmarshal([]byte(item.Arguments), &args); err != nil {
			return HandoffArgs{}, true, fmt.Errorf("decode %s arguments: %w", agents.TransferToolName, err)
		}
	}
	args.DestinationAgent = strings.TrimSpace(args.DestinationAgent)
	if args.DestinationAgent == "" {
		return HandoffArgs{}, true, fmt.Errorf("%s call missing destination_agent", agents.TransferToolName)
	}
	return args, true, nil
}
