package events

import (
	"encoding/json"
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// BaseEvent carries the envelope fields every outgoing event shares.
type BaseEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}

func NewBaseEvent(eventType string) BaseEvent {
	id, err := nanoid.New()
	if err != nil {
		panic(err)
	}
	return BaseEvent{
		EventID: "evt_" + id,
		Type:    eventType,
	}
}

// EventType implements ClientEvent for every struct embedding BaseEvent.
func (b BaseEvent) EventType() string { return b.Type }

// ClientEvent is any event that can be sent to the server.
type ClientEvent interface {
	EventType() string
}

// ServerEvent is an event received from the server, parsed into its
// concrete type by ParseServer.
type ServerEvent interface {
	ServerType() string
}

type envelope struct {
	Type string `json:"type"`
}

func Parse[T any](data []byte) (*T, error) {
	var x T
	if err := json.Unmarshal(data, &x); err != nil {
		return nil, err
	}
	return &x, nil
}

// Server event type names.
const (
	TypeError                              = "error"
	TypeSessionCreated                     = "session.created"
	TypeSessionUpdated                     = "session.updated"
	TypeConversationItemCreated            = "conversation.item.created"
	TypeConversationItemTruncated          = "conversation.item.truncated"
	TypeConversationItemDeleted            = "conversation.item.deleted"
	TypeInputAudioTranscriptionCompleted   = "conversation.item.input_audio_transcription.completed"
	TypeSpeechStarted                      = "input_audio_buffer.speech_started"
	TypeSpeechStopped                      = "input_audio_buffer.speech_stopped"
	TypeResponseCreated                    = "response.created"
	TypeResponseOutputItemAdded            = "response.output_item.added"
	TypeResponseOutputItemDone             = "response.output_item.done"
	TypeResponseContentPartAdded           = "response.content_part.added"
	TypeResponseAudioTranscriptDelta       = "response.audio_transcript.delta"
	TypeResponseAudioDelta                 = "response.audio.delta"
	TypeResponseTextDelta                  = "response.text.delta"
	TypeResponseFunctionCallArgumentsDelta = "response.function_call_arguments.delta"
)

// ParseServer reads the type envelope and unmarshals the frame into the
// matching event struct. Frames with a type this package does not model
// come back as *RawEvent so listeners still see them.
func ParseServer(data []byte) (ServerEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("events: bad envelope: %w", err)
	}

	parse := func(evt ServerEvent) (ServerEvent, error) {
		if err := json.Unmarshal(data, evt); err != nil {
			return nil, fmt.Errorf("events: parse %q: %w", env.Type, err)
		}
		return evt, nil
	}

	switch env.Type {
	case TypeError:
		return parse(&ErrorEvent{})
	case TypeSessionCreated:
		return parse(&SessionCreatedEvent{})
	case TypeSessionUpdated:
		return parse(&SessionUpdatedEvent{})
	case TypeConversationItemCreated:
		return parse(&ConversationItemCreatedEvent{})
	case TypeConversationItemTruncated:
		return parse(&ConversationItemTruncatedEvent{})
	case TypeConversationItemDeleted:
		return parse(&ConversationItemDeletedEvent{})
	case TypeInputAudioTranscriptionCompleted:
		return parse(&InputAudioTranscriptionCompletedEvent{})
	case TypeSpeechStarted:
		return parse(&SpeechStartedEvent{})
	case TypeSpeechStopped:
		return parse(&SpeechStoppedEvent{})
	case TypeResponseCreated:
		return parse(&ResponseCreatedEvent{})
	case TypeResponseOutputItemAdded:
		return parse(&ResponseOutputItemAddedEvent{})
	case TypeResponseOutputItemDone:
		return parse(&ResponseOutputItemDoneEvent{})
	case TypeResponseContentPartAdded:
		return parse(&ResponseContentPartAddedEvent{})
	case TypeResponseAudioTranscriptDelta:
		return parse(&ResponseAudioTranscriptDeltaEvent{})
	case TypeResponseAudioDelta:
		return parse(&ResponseAudioDeltaEvent{})
	case TypeResponseTextDelta:
		return parse(&ResponseTextDeltaEvent{})
	case TypeResponseFunctionCallArgumentsDelta:
		return parse(&ResponseFunctionCallArgumentsDeltaEvent{})
	default:
		return &RawEvent{Type: env.Type, Data: append([]byte(nil), data...)}, nil
	}
}

// RawEvent wraps a frame whose type has no dedicated struct.
type RawEvent struct {
	Type string
	Data []byte
}

func (e *RawEvent) ServerType() string { return e.Type }
