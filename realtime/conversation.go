package realtime

import (
	"encoding/base64"
	"log/slog"
	"sync"

	"github.com/campuskit/campuskit-go/events"
)

const bytesPerSample = 2 // 16-bit PCM

// ToolCall is the derived tool projection of a function_call item.
type ToolCall struct {
	Type      string
	Name      string
	CallID    string
	Arguments string
}

// Formatted is the incrementally-assembled projection of an item. Audio
// is an ordered sequence of raw PCM chunks; Text and Transcript are
// appended to, never rewritten except on truncation.
type Formatted struct {
	Audio      [][]byte
	Text       string
	Transcript string
	Tool       *ToolCall
	Output     string
}

// Item is one conversation turn element.
type Item struct {
	ID        string
	Object    string
	Type      string
	Role      string
	Status    string
	Content   []events.ContentPart
	CallID    string
	Name      string
	Arguments string
	Output    string
	Formatted Formatted
}

// Response groups the item ids produced by one model turn.
type Response struct {
	ID     string
	Output []string
}

// Delta reports the incremental change a single event applied to an item.
type Delta struct {
	Text       string
	Transcript string
	Audio      []byte
	Arguments  string
}

type queuedSpeech struct {
	audioStartMs int
	audioEndMs   int
	audio        []byte
}

// Conversation folds the server event stream into an ordered, queryable
// collection of items. All mutation happens through ProcessEvent; a mutex
// guards the state so accessors may be called from other goroutines.
type Conversation struct {
	mu         sync.Mutex
	sampleRate int
	logger     *slog.Logger

	items          []*Item
	itemLookup     map[string]*Item
	responses      []*Response
	responseLookup map[string]*Response

	queuedSpeech      map[string]*queuedSpeech
	queuedTranscripts map[string]string
	queuedInputAudio  []byte
}

func NewConversation(sampleRate int, logger *slog.Logger) *Conversation {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Conversation{sampleRate: sampleRate, logger: logger}
	c.Clear()
	return c
}

// Clear drops all items, responses and queued side-table entries.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.itemLookup = map[string]*Item{}
	c.responses = nil
	c.responseLookup = map[string]*Response{}
	c.queuedSpeech = map[string]*queuedSpeech{}
	c.queuedTranscripts = map[string]string{}
	c.queuedInputAudio = nil
}

// QueueInputAudio hands the committed input buffer to the conversation;
// the next user message created consumes it as its audio.
func (c *Conversation) QueueInputAudio(buf []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queuedInputAudio = buf
}

// Item returns the item with the given id, or nil.
func (c *Conversation) Item(id string) *Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.itemLookup[id]
}

// Items returns the ordered item list.
func (c *Conversation) Items() []*Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Item, len(c.items))
	copy(out, c.items)
	return out
}

// ProcessEvent folds one server event into the conversation and reports
// the affected item plus the incremental change, if any. inputAudio is
// only consulted by speech-stopped events; pass nil otherwise.
//
// Events referencing an item that must already exist return a
// *ProtocolError, except audio deltas which may legitimately race item
// creation and are dropped with a diagnostic instead.
func (c *Conversation) ProcessEvent(evt events.ServerEvent, inputAudio []byte) (*Item, *Delta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := evt.(type) {
	case *events.ConversationItemCreatedEvent:
		return c.processItemCreated(e)
	case *events.ConversationItemTruncatedEvent:
		return c.processItemTruncated(e)
	case *events.ConversationItemDeletedEvent:
		return c.processItemDeleted(e)
	case *events.InputAudioTranscriptionCompletedEvent:
		return c.processTranscriptionCompleted(e)
	case *events.SpeechStartedEvent:
		return c.processSpeechStarted(e)
	case *events.SpeechStoppedEvent:
		return c.processSpeechStopped(e, inputAudio)
	case *events.ResponseCreatedEvent:
		return c.processResponseCreated(e)
	case *events.ResponseOutputItemAddedEvent:
		return c.processOutputItemAdded(e)
	case *events.ResponseOutputItemDoneEvent:
		return c.processOutputItemDone(e)
	case *events.ResponseContentPartAddedEvent:
		return c.processContentPartAdded(e)
	case *events.ResponseAudioTranscriptDeltaEvent:
		return c.processAudioTranscriptDelta(e)
	case *events.ResponseAudioDeltaEvent:
		return c.processAudioDelta(e)
	case *events.ResponseTextDeltaEvent:
		return c.processTextDelta(e)
	case *events.ResponseFunctionCallArgumentsDeltaEvent:
		return c.processFunctionCallArgumentsDelta(e)
	default:
		return nil, nil, protocolErrorf(evt.ServerType(), "missing conversation event processor")
	}
}

func (c *Conversation) processItemCreated(e *events.ConversationItemCreatedEvent) (*Item, *Delta, error) {
	if existing, ok := c.itemLookup[e.Item.ID]; ok {
		// Idempotent creation: the stored item is left untouched.
		return existing, nil, nil
	}

	item := &Item{
		ID:        e.Item.ID,
		Object:    e.Item.Object,
		Type:      e.Item.Type,
		Role:      e.Item.Role,
		Status:    e.Item.Status,
		Content:   append([]events.ContentPart(nil), e.Item.Content...),
		CallID:    e.Item.CallID,
		Name:      e.Item.Name,
		Arguments: e.Item.Arguments,
		Output:    e.Item.Output,
	}
	c.itemLookup[item.ID] = item
	c.items = append(c.items, item)

	if speech, ok := c.queuedSpeech[item.ID]; ok {
		if len(speech.audio) > 0 {
			item.Formatted.Audio = append(item.Formatted.Audio, speech.audio)
		}
		delete(c.queuedSpeech, item.ID)
	}
	for _, part := range item.Content {
		if part.Type == "text" || part.Type == "input_text" {
			item.Formatted.Text += part.Text
		}
	}
	if transcript, ok := c.queuedTranscripts[item.ID]; ok {
		item.Formatted.Transcript = transcript
		delete(c.queuedTranscripts, item.ID)
	}

	switch item.Type {
	case "message":
		if item.Role == "user" {
			item.Status = "completed"
			if c.queuedInputAudio != nil {
				item.Formatted.Audio = append(item.Formatted.Audio, c.queuedInputAudio)
				c.queuedInputAudio = nil
			}
		} else {
			item.Status = "in_progress"
		}
	case "function_call":
		item.Formatted.Tool = &ToolCall{
			Type:   "function",
			Name:   item.Name,
			CallID: item.CallID,
		}
		item.Status = "in_progress"
	case "function_call_output":
		item.Status = "completed"
		item.Formatted.Output = item.Output
	}

	return item, nil, nil
}

func (c *Conversation) processItemTruncated(e *events.ConversationItemTruncatedEvent) (*Item, *Delta, error) {
	item, ok := c.itemLookup[e.ItemID]
	if !ok {
		return nil, nil, protocolErrorf(evtType(e), "item %q not found", e.ItemID)
	}
	endSamples := e.AudioEndMs * c.sampleRate / 1000
	item.Formatted.Transcript = ""
	item.Formatted.Audio = truncateChunks(item.Formatted.Audio, endSamples)
	return item, nil, nil
}

// truncateChunks keeps exactly the first n samples of the chunk sequence,
// splitting a chunk at the sample boundary if needed.
func truncateChunks(chunks [][]byte, n int) [][]byte {
	if n <= 0 {
		return nil
	}
	remaining := n * bytesPerSample
	var out [][]byte
	for _, chunk := range chunks {
		if remaining <= 0 {
			break
		}
		if len(chunk) <= remaining {
			out = append(out, chunk)
			remaining -= len(chunk)
			continue
		}
		out = append(out, chunk[:remaining])
		remaining = 0
	}
	return out
}

func (c *Conversation) processItemDeleted(e *events.ConversationItemDeletedEvent) (*Item, *Delta, error) {
	item, ok := c.itemLookup[e.ItemID]
	if !ok {
		return nil, nil, protocolErrorf(evtType(e), "item %q not found", e.ItemID)
	}
	delete(c.itemLookup, e.ItemID)
	for i, it := range c.items {
		if it == item {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	return item, nil, nil
}

func (c *Conversation) processTranscriptionCompleted(e *events.InputAudioTranscriptionCompletedEvent) (*Item, *Delta, error) {
	formatted := e.Transcript
	if formatted == "" {
		// An empty transcript would collapse downstream; keep a space.
		formatted = " "
	}
	item, ok := c.itemLookup[e.ItemID]
	if !ok {
		c.queuedTranscripts[e.ItemID] = formatted
		return nil, nil, nil
	}
	if e.ContentIndex < 0 || e.ContentIndex >= len(item.Content) {
		return nil, nil, protocolErrorf(evtType(e), "item %q has no content part %d", e.ItemID, e.ContentIndex)
	}
	item.Content[e.ContentIndex].Transcript = e.Transcript
	item.Formatted.Transcript = formatted
	return item, &Delta{Transcript: e.Transcript}, nil
}

func (c *Conversation) processSpeechStarted(e *events.SpeechStartedEvent) (*Item, *Delta, error) {
	c.queuedSpeech[e.ItemID] = &queuedSpeech{audioStartMs: e.AudioStartMs}
	return nil, nil, nil
}

func (c *Conversation) processSpeechStopped(e *events.SpeechStoppedEvent, inputAudio []byte) (*Item, *Delta, error) {
	speech, ok := c.queuedSpeech[e.ItemID]
	if !ok {
		return nil, nil, protocolErrorf(evtType(e), "no speech entry for item %q", e.ItemID)
	}
	speech.audioEndMs = e.AudioEndMs
	if inputAudio != nil {
		start := speech.audioStartMs * c.sampleRate / 1000 * bytesPerSample
		end := speech.audioEndMs * c.sampleRate / 1000 * bytesPerSample
		if start > len(inputAudio) {
			start = len(inputAudio)
		}
		if end > len(inputAudio) {
			end = len(inputAudio)
		}
		speech.audio = append([]byte(nil), inputAudio[start:end]...)
	}
	return nil, nil, nil
}

func (c *Conversation) processResponseCreated(e *events.ResponseCreatedEvent) (*Item, *Delta, error) {
	if _, ok := c.responseLookup[e.Response.ID]; !ok {
		resp := &Response{ID: e.Response.ID}
		for _, it := range e.Response.Output {
			resp.Output = append(resp.Output, it.ID)
		}
		c.responseLookup[resp.ID] = resp
		c.responses = append(c.responses, resp)
	}
	return nil, nil, nil
}

func (c *Conversation) processOutputItemAdded(e *events.ResponseOutputItemAddedEvent) (*Item, *Delta, error) {
	resp, ok := c.responseLookup[e.ResponseID]
	if !ok {
		return nil, nil, protocolErrorf(evtType(e), "response %q not found", e.ResponseID)
	}
	resp.Output = append(resp.Output, e.Item.ID)
	return nil, nil, nil
}

func (c *Conversation) processOutputItemDone(e *events.ResponseOutputItemDoneEvent) (*Item, *Delta, error) {
	item, ok := c.itemLookup[e.Item.ID]
	if !ok {
		return nil, nil, protocolErrorf(evtType(e), "item %q not found", e.Item.ID)
	}
	item.Status = e.Item.Status
	return item, nil, nil
}

func (c *Conversation) processContentPartAdded(e *events.ResponseContentPartAddedEvent) (*Item, *Delta, error) {
	item, ok := c.itemLookup[e.ItemID]
	if !ok {
		return nil, nil, protocolErrorf(evtType(e), "item %q not found", e.ItemID)
	}
	item.Content = append(item.Content, e.Part)
	return item, nil, nil
}

func (c *Conversation) processAudioTranscriptDelta(e *events.ResponseAudioTranscriptDeltaEvent) (*Item, *Delta, error) {
	item, ok := c.itemLookup[e.ItemID]
	if !ok {
		return nil, nil, protocolErrorf(evtType(e), "item %q not found", e.ItemID)
	}
	if e.ContentIndex < 0 || e.ContentIndex >= len(item.Content) {
		return nil, nil, protocolErrorf(evtType(e), "item %q has no content part %d", e.ItemID, e.ContentIndex)
	}
	item.Content[e.ContentIndex].Transcript += e.Delta
	item.Formatted.Transcript += e.Delta
	return item, &Delta{Transcript: e.Delta}, nil
}

// processAudioDelta drops deltas for missing items instead of failing:
// audio frames may race item creation under high throughput.
func (c *Conversation) processAudioDelta(e *events.ResponseAudioDeltaEvent) (*Item, *Delta, error) {
	item, ok := c.itemLookup[e.ItemID]
	if !ok {
		c.logger.Debug("audio delta for unknown item", slog.String("item_id", e.ItemID))
		return nil, nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(e.Delta)
	if err != nil {
		return nil, nil, protocolErrorf(evtType(e), "bad audio delta: %v", err)
	}
	item.Formatted.Audio = append(item.Formatted.Audio, raw)
	return item, &Delta{Audio: raw}, nil
}

func (c *Conversation) processTextDelta(e *events.ResponseTextDeltaEvent) (*Item, *Delta, error) {
	item, ok := c.itemLookup[e.ItemID]
	if !ok {
		return nil, nil, protocolErrorf(evtType(e), "item %q not found", e.ItemID)
	}
	if e.ContentIndex < 0 || e.ContentIndex >= len(item.Content) {
		return nil, nil, protocolErrorf(evtType(e), "item %q has no content part %d", e.ItemID, e.ContentIndex)
	}
	item.Content[e.ContentIndex].Text += e.Delta
	item.Formatted.Text += e.Delta
	return item, &Delta{Text: e.Delta}, nil
}

func (c *Conversation) processFunctionCallArgumentsDelta(e *events.ResponseFunctionCallArgumentsDeltaEvent) (*Item, *Delta, error) {
	item, ok := c.itemLookup[e.ItemID]
	if !ok {
		return nil, nil, protocolErrorf(evtType(e), "item %q not found", e.ItemID)
	}
	if item.Formatted.Tool == nil {
		return nil, nil, protocolErrorf(evtType(e), "item %q is not a function call", e.ItemID)
	}
	item.Arguments += e.Delta
	item.Formatted.Tool.Arguments += e.Delta
	return item, &Delta{Arguments: e.Delta}, nil
}

func evtType(e events.ServerEvent) string { return e.ServerType() }
