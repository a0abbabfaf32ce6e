package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/campuskit/campuskit-go/events"
	"github.com/campuskit/campuskit-go/tool"
)

// Client-side event names dispatched to listeners registered with On.
const (
	EventConversationUpdated     = "conversation.updated"
	EventConversationInterrupted = "conversation.interrupted"
	EventItemAppended            = "conversation.item.appended"
	EventItemCompleted           = "conversation.item.completed"
	EventRealtime                = "realtime.event"
)

// ConversationUpdate is the payload of conversation.updated events.
type ConversationUpdate struct {
	Item  *Item
	Delta *Delta
}

// ItemEvent is the payload of item.appended / item.completed events.
type ItemEvent struct {
	Item *Item
}

// LoggedEvent mirrors every client- and server-originated wire event.
type LoggedEvent struct {
	Time   time.Time
	Source string // "client" or "server"
	Event  any
}

// Client owns the session configuration, the registered tool table and
// the conversation state, and drives the control flow between them and
// the event transport.
type Client struct {
	*emitter

	config       *clientConfig
	logger       *slog.Logger
	api          *API
	conversation *Conversation
	tools        *tool.Registry
	io           *AudioIO

	mu             sync.Mutex
	session        SessionConfig
	sessionCreated chan struct{}
	inputAudio     []byte
	ctx            context.Context
}

func NewClient(opts ...ClientOption) *Client {
	config := &clientConfig{}
	withDefaults()(config)
	WithOptions(opts...)(config)

	c := &Client{
		emitter:      newEmitter(),
		config:       config,
		logger:       config.logger,
		api:          newAPI(config.url, config.apiKey, config.model, config.logger),
		conversation: NewConversation(WireSampleRate, config.logger),
		tools:        tool.NewRegistry(),
		ctx:          context.Background(),
	}
	if config.audio {
		c.io = NewAudioIO(config.sampleRate, config.latency())
	}
	c.resetConfig()
	c.addAPIEventHandlers()
	return c
}

func (c *Client) resetConfig() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionCreated = make(chan struct{})
	c.session = defaultSessionConfig(c.config.instructions, c.config.voice, c.config.temperature)
	c.tools.Clear()
	c.inputAudio = nil
}

func (c *Client) addAPIEventHandlers() {
	logEvent := func(source string) Handler {
		return func(evt any) {
			c.dispatch(EventRealtime, LoggedEvent{Time: time.Now().UTC(), Source: source, Event: evt})
		}
	}
	c.api.On("client.*", logEvent("client"))
	c.api.On("server.*", logEvent("server"))

	c.api.On("server."+events.TypeSessionCreated, func(evt any) {
		c.mu.Lock()
		select {
		case <-c.sessionCreated:
		default:
			close(c.sessionCreated)
		}
		c.mu.Unlock()
	})

	process := func(evt any) {
		c.processEvent(evt.(events.ServerEvent), nil)
	}
	for _, name := range []string{
		events.TypeResponseCreated,
		events.TypeResponseOutputItemAdded,
		events.TypeResponseContentPartAdded,
		events.TypeConversationItemTruncated,
		events.TypeConversationItemDeleted,
		events.TypeInputAudioTranscriptionCompleted,
		events.TypeResponseAudioTranscriptDelta,
		events.TypeResponseTextDelta,
		events.TypeResponseFunctionCallArgumentsDelta,
	} {
		c.api.On("server."+name, process)
	}

	c.api.On("server."+events.TypeResponseAudioDelta, func(evt any) {
		_, delta := c.processEvent(evt.(events.ServerEvent), nil)
		if c.io != nil && delta != nil && len(delta.Audio) > 0 {
			if _, err := c.io.agentBuffer.Write(delta.Audio); err != nil {
				c.logger.Error("failed to buffer output audio", slog.Any("err", err))
			}
		}
	})

	c.api.On("server."+events.TypeSpeechStarted, func(evt any) {
		c.processEvent(evt.(events.ServerEvent), nil)
		if c.io != nil {
			c.io.ClearOutputBuffer()
		}
		c.dispatch(EventConversationInterrupted, evt)
	})

	c.api.On("server."+events.TypeSpeechStopped, func(evt any) {
		c.mu.Lock()
		buf := append([]byte(nil), c.inputAudio...)
		c.mu.Unlock()
		c.processEvent(evt.(events.ServerEvent), buf)
	})

	c.api.On("server."+events.TypeConversationItemCreated, func(evt any) {
		item, _ := c.processEvent(evt.(events.ServerEvent), nil)
		if item == nil {
			return
		}
		c.dispatch(EventItemAppended, ItemEvent{Item: item})
		if item.Status == "completed" {
			c.dispatch(EventItemCompleted, ItemEvent{Item: item})
		}
	})

	// Tool execution must not block ingestion of subsequent frames.
	c.api.OnAsync("server."+events.TypeResponseOutputItemDone, func(evt any) {
		item, _ := c.processEvent(evt.(events.ServerEvent), nil)
		if item == nil {
			return
		}
		if item.Status == "completed" {
			c.dispatch(EventItemCompleted, ItemEvent{Item: item})
		}
		if item.Formatted.Tool != nil {
			c.callTool(item.Formatted.Tool)
		}
	})
}

func (c *Client) processEvent(evt events.ServerEvent, inputAudio []byte) (*Item, *Delta) {
	item, delta, err := c.conversation.ProcessEvent(evt, inputAudio)
	if err != nil {
		c.logger.Error("event processing failed",
			slog.String("type", evt.ServerType()), slog.Any("err", err))
		return nil, nil
	}
	if item != nil {
		c.dispatch(EventConversationUpdated, ConversationUpdate{Item: item, Delta: delta})
	}
	return item, delta
}

func (c *Client) callTool(t *ToolCall) {
	output, err := c.executeTool(t)
	if err != nil {
		c.logger.Error("tool call failed", slog.String("name", t.Name), slog.Any("err", err))
		data, _ := json.Marshal(map[string]any{"error": err.Error()})
		output = string(data)
	}
	if sendErr := c.api.Send(events.ConversationItemCreateEvent{
		BaseEvent: events.NewBaseEvent("conversation.item.create"),
		Item: events.Item{
			Type:   "function_call_output",
			CallID: t.CallID,
			Output: output,
		},
	}); sendErr != nil {
		c.logger.Error("failed to send tool output", slog.Any("err", sendErr))
		return
	}
	// The model reacts to the result or the error either way.
	if err := c.CreateResponse(); err != nil {
		c.logger.Error("failed to request response after tool call", slog.Any("err", err))
	}
}

func (c *Client) executeTool(t *ToolCall) (string, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(repairJSON(t.Arguments)), &args); err != nil {
		return "", fmt.Errorf("parse arguments: %w", err)
	}
	reg, ok := c.tools.Get(t.Name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrToolNotRegistered, t.Name)
	}
	result, err := reg.Handler(c.ctx, args)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}

func (c *Client) IsConnected() bool {
	return c.api.IsConnected()
}

// Conversation exposes the conversation state for queries.
func (c *Client) Conversation() *Conversation {
	return c.conversation
}

// Audio returns the device-side audio endpoints when audio IO is enabled.
func (c *Client) Audio() (io.Reader, io.Writer) {
	if c.io == nil {
		return nil, nil
	}
	return c.io.userOutputReader, c.io.userInputWriter
}

// Connect opens the transport and pushes the current session config. The
// session is live once the server acknowledges with session.created; use
// WaitForSessionCreated to block on that.
func (c *Client) Connect(ctx context.Context) error {
	if c.IsConnected() {
		return ErrAlreadyConnected
	}
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	if err := c.api.Connect(ctx); err != nil {
		return err
	}
	c.emitter.reopen()
	if err := c.pushSession(); err != nil {
		return err
	}
	if c.io != nil {
		go c.pumpInputAudio(ctx)
	}
	return nil
}

// pumpInputAudio forwards fixed-size chunks from the device input path
// to the server for as long as the connection lives.
func (c *Client) pumpInputAudio(ctx context.Context) {
	chunkSize := getChunkSize(WireSampleRate, c.config.latency(), bytesPerSample, 1)
	buf := make([]byte, chunkSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := c.io.agentInputReader.Read(buf)
		if err != nil {
			if err != io.EOF {
				c.logger.Error("input audio read failed", slog.Any("err", err))
			}
			return
		}
		if err := c.AppendInputAudio(buf[:n]); err != nil {
			return
		}
	}
}

// WaitForSessionCreated blocks until the server acknowledges the session.
func (c *Client) WaitForSessionCreated(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.mu.Lock()
	created := c.sessionCreated
	c.mu.Unlock()
	select {
	case <-created:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect tears down the transport and clears conversation state.
// Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.sessionCreated = make(chan struct{})
	c.mu.Unlock()
	c.conversation.Clear()
	c.api.Disconnect()
	c.emitter.shutdown()
}

// Reset recovers from unrecoverable protocol desync: disconnect, drop all
// listeners, restore configuration and tools to defaults.
func (c *Client) Reset() {
	c.Disconnect()
	c.api.clearHandlers()
	c.clearHandlers()
	c.resetConfig()
	c.addAPIEventHandlers()
}

// AddTool registers a named tool and re-advertises the session tool list.
func (c *Client) AddTool(def tool.Tool, h tool.Handler) error {
	if err := c.tools.Add(def, h); err != nil {
		return err
	}
	return c.UpdateSession(SessionPatch{})
}

// RemoveTool unregisters a tool and re-advertises the shrunk list.
func (c *Client) RemoveTool(name string) error {
	if err := c.tools.Remove(name); err != nil {
		return err
	}
	return c.UpdateSession(SessionPatch{})
}

// UpdateSession shallow-merges the patch into the stored config and
// pushes the result while connected; otherwise the change is local and
// queued for the next connect.
func (c *Client) UpdateSession(patch SessionPatch) error {
	c.mu.Lock()
	c.session.apply(patch)
	c.mu.Unlock()
	if !c.IsConnected() {
		return nil
	}
	return c.pushSession()
}

func (c *Client) pushSession() error {
	c.mu.Lock()
	payload := c.session.payload(c.tools.List())
	c.mu.Unlock()
	return c.api.Send(events.SessionUpdateEvent{
		BaseEvent: events.NewBaseEvent("session.update"),
		Session:   payload,
	})
}

func (c *Client) turnDetectionType() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.TurnDetection == nil {
		return ""
	}
	return c.session.TurnDetection.Type
}

// CreateConversationItem sends an arbitrary item.
func (c *Client) CreateConversationItem(item events.Item) error {
	return c.api.Send(events.ConversationItemCreateEvent{
		BaseEvent: events.NewBaseEvent("conversation.item.create"),
		Item:      item,
	})
}

// SendUserMessageContent creates a user message with the given parts and
// requests a response.
func (c *Client) SendUserMessageContent(content ...events.ContentPart) error {
	if len(content) > 0 {
		if err := c.CreateConversationItem(events.Item{
			Type:    "message",
			Role:    "user",
			Content: content,
		}); err != nil {
			return err
		}
	}
	return c.CreateResponse()
}

// SendUserText is shorthand for a single input_text part.
func (c *Client) SendUserText(text string) error {
	return c.SendUserMessageContent(events.TextPart(text))
}

// AppendInputAudio streams raw PCM to the server-side input buffer and
// mirrors it locally; the mirror is reconciled with the conversation at
// commit time in CreateResponse. Empty input is a no-op.
func (c *Client) AppendInputAudio(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if err := c.api.Send(events.InputAudioBufferAppendEvent{
		BaseEvent: events.NewBaseEvent("input_audio_buffer.append"),
		Audio:     base64.StdEncoding.EncodeToString(buf),
	}); err != nil {
		return err
	}
	c.mu.Lock()
	c.inputAudio = append(c.inputAudio, buf...)
	c.mu.Unlock()
	return nil
}

// CreateResponse requests a model turn. Without server turn detection,
// buffered input audio is committed first and ownership of the bytes
// moves to the conversation's pending-input-audio slot.
func (c *Client) CreateResponse() error {
	if c.turnDetectionType() == "" {
		c.mu.Lock()
		buffered := c.inputAudio
		c.inputAudio = nil
		c.mu.Unlock()
		if len(buffered) > 0 {
			if err := c.api.Send(events.InputAudioBufferCommitEvent{
				BaseEvent: events.NewBaseEvent("input_audio_buffer.commit"),
			}); err != nil {
				return err
			}
			c.conversation.QueueInputAudio(buffered)
		}
	}
	return c.api.Send(events.ResponseCreateEvent{
		BaseEvent: events.NewBaseEvent("response.create"),
	})
}

// CancelResponse cancels the in-flight response. With an item id, the
// referenced item must be an assistant message with an audio content
// part; the response is cancelled and the item truncated at the
// millisecond boundary derived from sampleCount.
func (c *Client) CancelResponse(id string, sampleCount int) (*Item, error) {
	if id == "" {
		return nil, c.api.Send(events.ResponseCancelEvent{
			BaseEvent: events.NewBaseEvent("response.cancel"),
		})
	}

	item := c.conversation.Item(id)
	if item == nil {
		return nil, fmt.Errorf("realtime: item %q not found", id)
	}
	if item.Type != "message" {
		return nil, fmt.Errorf("realtime: can only cancel message items, got %q", item.Type)
	}
	if item.Role != "assistant" {
		return nil, fmt.Errorf("realtime: can only cancel assistant messages, got role %q", item.Role)
	}
	audioIndex := -1
	for i, part := range item.Content {
		if part.Type == "audio" {
			audioIndex = i
			break
		}
	}
	if audioIndex == -1 {
		return nil, fmt.Errorf("realtime: item %q has no audio content to truncate", id)
	}

	if err := c.api.Send(events.ResponseCancelEvent{
		BaseEvent: events.NewBaseEvent("response.cancel"),
	}); err != nil {
		return nil, err
	}
	if err := c.api.Send(events.ConversationItemTruncateEvent{
		BaseEvent:    events.NewBaseEvent("conversation.item.truncate"),
		ItemID:       id,
		ContentIndex: audioIndex,
		AudioEndMs:   sampleCount * 1000 / WireSampleRate,
	}); err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem removes an item server-side; the deletion folds back into
// local state through the resulting conversation.item.deleted event.
func (c *Client) DeleteItem(id string) error {
	return c.api.Send(events.ConversationItemDeleteEvent{
		BaseEvent: events.NewBaseEvent("conversation.item.delete"),
		ItemID:    id,
	})
}

// WaitForNextItem blocks until the next item is appended.
func (c *Client) WaitForNextItem(ctx context.Context) (*Item, error) {
	evt, err := c.WaitForNext(ctx, EventItemAppended)
	if err != nil {
		return nil, err
	}
	return evt.(ItemEvent).Item, nil
}

// WaitForNextCompletedItem blocks until the next item completes.
func (c *Client) WaitForNextCompletedItem(ctx context.Context) (*Item, error) {
	evt, err := c.WaitForNext(ctx, EventItemCompleted)
	if err != nil {
		return nil, err
	}
	return evt.(ItemEvent).Item, nil
}
