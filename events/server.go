package events

import "fmt"

type ErrorEvent struct {
	EventID     string      `json:"event_id"`
	Type        string      `json:"type"`
	ErrorDetail ErrorDetail `json:"error"`
}

func (e *ErrorEvent) ServerType() string { return TypeError }

func (e *ErrorEvent) Error() string {
	return e.ErrorDetail.Error()
}

// ErrorDetail holds the details of the error.
type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
	EventID string `json:"event_id"`
}

func (e *ErrorDetail) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type SessionCreatedEvent struct {
	EventID string  `json:"event_id"`
	Session Session `json:"session"`
}

func (e *SessionCreatedEvent) ServerType() string { return TypeSessionCreated }

type SessionUpdatedEvent struct {
	EventID string  `json:"event_id"`
	Session Session `json:"session"`
}

func (e *SessionUpdatedEvent) ServerType() string { return TypeSessionUpdated }

type ConversationItemCreatedEvent struct {
	EventID        string `json:"event_id"`
	PreviousItemID string `json:"previous_item_id"`
	Item           Item   `json:"item"`
}

func (e *ConversationItemCreatedEvent) ServerType() string { return TypeConversationItemCreated }

type ConversationItemTruncatedEvent struct {
	EventID      string `json:"event_id"`
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	AudioEndMs   int    `json:"audio_end_ms"`
}

func (e *ConversationItemTruncatedEvent) ServerType() string { return TypeConversationItemTruncated }

type ConversationItemDeletedEvent struct {
	EventID string `json:"event_id"`
	ItemID  string `json:"item_id"`
}

func (e *ConversationItemDeletedEvent) ServerType() string { return TypeConversationItemDeleted }

type InputAudioTranscriptionCompletedEvent struct {
	EventID      string `json:"event_id"`
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	Transcript   string `json:"transcript"`
}

func (e *InputAudioTranscriptionCompletedEvent) ServerType() string {
	return TypeInputAudioTranscriptionCompleted
}

type SpeechStartedEvent struct {
	EventID      string `json:"event_id"`
	ItemID       string `json:"item_id"`
	AudioStartMs int    `json:"audio_start_ms"`
}

func (e *SpeechStartedEvent) ServerType() string { return TypeSpeechStarted }

type SpeechStoppedEvent struct {
	EventID    string `json:"event_id"`
	ItemID     string `json:"item_id"`
	AudioEndMs int    `json:"audio_end_ms"`
}

func (e *SpeechStoppedEvent) ServerType() string { return TypeSpeechStopped }

// ResponsePayload is the response object embedded in response.* events.
type ResponsePayload struct {
	ID     string `json:"id"`
	Object string `json:"object,omitempty"`
	Status string `json:"status,omitempty"`
	Output []Item `json:"output,omitempty"`
}

type ResponseCreatedEvent struct {
	EventID  string          `json:"event_id"`
	Response ResponsePayload `json:"response"`
}

func (e *ResponseCreatedEvent) ServerType() string { return TypeResponseCreated }

type ResponseOutputItemAddedEvent struct {
	EventID     string `json:"event_id"`
	ResponseID  string `json:"response_id"`
	OutputIndex int    `json:"output_index"`
	Item        Item   `json:"item"`
}

func (e *ResponseOutputItemAddedEvent) ServerType() string { return TypeResponseOutputItemAdded }

type ResponseOutputItemDoneEvent struct {
	EventID     string `json:"event_id"`
	ResponseID  string `json:"response_id"`
	OutputIndex int    `json:"output_index"`
	Item        Item   `json:"item"`
}

func (e *ResponseOutputItemDoneEvent) ServerType() string { return TypeResponseOutputItemDone }

type ResponseContentPartAddedEvent struct {
	EventID      string      `json:"event_id"`
	ResponseID   string      `json:"response_id"`
	ItemID       string      `json:"item_id"`
	OutputIndex  int         `json:"output_index"`
	ContentIndex int         `json:"content_index"`
	Part         ContentPart `json:"part"`
}

func (e *ResponseContentPartAddedEvent) ServerType() string { return TypeResponseContentPartAdded }

type ResponseAudioTranscriptDeltaEvent struct {
	EventID      string `json:"event_id"`
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
}

func (e *ResponseAudioTranscriptDeltaEvent) ServerType() string {
	return TypeResponseAudioTranscriptDelta
}

type ResponseAudioDeltaEvent struct {
	EventID      string `json:"event_id"`
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
}

func (e *ResponseAudioDeltaEvent) ServerType() string { return TypeResponseAudioDelta }

type ResponseTextDeltaEvent struct {
	EventID      string `json:"event_id"`
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
}

func (e *ResponseTextDeltaEvent) ServerType() string { return TypeResponseTextDelta }

type ResponseFunctionCallArgumentsDeltaEvent struct {
	EventID     string `json:"event_id"`
	ResponseID  string `json:"response_id"`
	ItemID      string `json:"item_id"`
	OutputIndex int    `json:"output_index"`
	CallID      string `json:"call_id"`
	Delta       string `json:"delta"`
}

func (e *ResponseFunctionCallArgumentsDeltaEvent) ServerType() string {
	return TypeResponseFunctionCallArgumentsDelta
}
