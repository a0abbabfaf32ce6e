package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/campuskit/campuskit-go/events"
	"github.com/campuskit/campuskit-go/internal/websocket"
	"github.com/campuskit/campuskit-go/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn captures outgoing frames so tests can assert on the wire
// traffic without a network.
type fakeConn struct {
	mu     sync.Mutex
	closed bool
	writes chan []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{writes: make(chan []byte, 64)}
}

func (f *fakeConn) WriteText(data []byte) {
	f.writes <- data
}

func (f *fakeConn) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// nextWrite waits for the next outgoing frame and decodes its envelope.
func nextWrite(t *testing.T, f *fakeConn) map[string]any {
	t.Helper()
	select {
	case data := <-f.writes:
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outgoing frame")
		return nil
	}
}

// newTestClient wires a client to a fake connection. The returned inject
// function feeds a server event into the receive path.
func newTestClient(t *testing.T, opts ...ClientOption) (*Client, *fakeConn, func(map[string]any)) {
	t.Helper()

	c := NewClient(append([]ClientOption{WithKey("test-key")}, opts...)...)
	fc := newFakeConn()
	var onText func([]byte) error
	c.api.dial = func(ctx context.Context, cfg websocket.ClientConfig) (wsConn, error) {
		onText = cfg.OnText
		return fc, nil
	}

	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(c.Disconnect)

	inject := func(m map[string]any) {
		data, err := json.Marshal(m)
		require.NoError(t, err)
		require.NoError(t, onText(data))
	}
	return c, fc, inject
}

func itemCreatedFrame(item map[string]any) map[string]any {
	return map[string]any{"type": events.TypeConversationItemCreated, "item": item}
}

func TestConnectPushesDefaultSession(t *testing.T) {
	_, fc, _ := newTestClient(t, WithInstructions("be helpful"))

	frame := nextWrite(t, fc)
	require.Equal(t, "session.update", frame["type"])
	session := frame["session"].(map[string]any)
	assert.Equal(t, "be helpful", session["instructions"])
	assert.Equal(t, "shimmer", session["voice"])
	assert.Equal(t, "pcm16", session["input_audio_format"])
	assert.Equal(t, 0.8, session["temperature"])
	assert.Equal(t, float64(4096), session["max_response_output_tokens"])
	assert.Equal(t, "whisper-1", session["input_audio_transcription"].(map[string]any)["model"])
	assert.Equal(t, "server_vad", session["turn_detection"].(map[string]any)["type"])
}

func TestConnectTwiceFails(t *testing.T) {
	c, _, _ := newTestClient(t)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyConnected)
}

func TestConnectWhileDialingFails(t *testing.T) {
	c := NewClient(WithKey("test-key"))
	fc := newFakeConn()
	entered := make(chan struct{})
	release := make(chan struct{})
	c.api.dial = func(ctx context.Context, cfg websocket.ClientConfig) (wsConn, error) {
		close(entered)
		<-release
		return fc, nil
	}

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()
	<-entered

	assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyConnected)

	close(release)
	require.NoError(t, <-done)
	t.Cleanup(c.Disconnect)
	assert.Equal(t, "session.update", nextWrite(t, fc)["type"])
}

func TestDisableTurnDetectionSentAsNull(t *testing.T) {
	c, fc, _ := newTestClient(t)
	nextWrite(t, fc)

	require.NoError(t, c.UpdateSession(SessionPatch{
		SetTurnDetection:           true,
		SetInputAudioTranscription: true,
	}))
	frame := nextWrite(t, fc)
	require.Equal(t, "session.update", frame["type"])
	session := frame["session"].(map[string]any)
	require.Contains(t, session, "turn_detection")
	assert.Nil(t, session["turn_detection"])
	require.Contains(t, session, "input_audio_transcription")
	assert.Nil(t, session["input_audio_transcription"])
}

func TestWaitForSessionCreated(t *testing.T) {
	c, fc, inject := newTestClient(t)
	nextWrite(t, fc)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.WaitForSessionCreated(ctx), context.DeadlineExceeded)

	inject(map[string]any{"type": events.TypeSessionCreated})
	assert.NoError(t, c.WaitForSessionCreated(context.Background()))
}

func TestAddToolAdvertisesAndRejectsDuplicates(t *testing.T) {
	c, fc, _ := newTestClient(t)
	nextWrite(t, fc)

	def := tool.Tool{
		Name:        "lookup_student",
		Description: "Look up a student record",
		Parameters: tool.Parameters{
			Type: "object",
			Properties: tool.Properties{
				"student_id": {Type: "string", Description: "student identifier"},
			},
			Required: []string{"student_id"},
		},
	}
	handler := func(ctx context.Context, args map[string]any) (any, error) { return nil, nil }

	require.NoError(t, c.AddTool(def, handler))
	frame := nextWrite(t, fc)
	require.Equal(t, "session.update", frame["type"])
	tools := frame["session"].(map[string]any)["tools"].([]any)
	require.Len(t, tools, 1)
	tdef := tools[0].(map[string]any)
	assert.Equal(t, "function", tdef["type"])
	assert.Equal(t, "lookup_student", tdef["name"])

	assert.ErrorIs(t, c.AddTool(def, handler), tool.ErrDuplicate)

	// Removal re-advertises the shrunk tool list right away.
	require.NoError(t, c.RemoveTool("lookup_student"))
	frame = nextWrite(t, fc)
	require.Equal(t, "session.update", frame["type"])
	assert.NotContains(t, frame["session"].(map[string]any), "tools")

	assert.ErrorIs(t, c.RemoveTool("lookup_student"), tool.ErrNotRegistered)
	select {
	case data := <-fc.writes:
		t.Fatalf("unexpected frame after failed removal: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

// runToolCall drives the wire sequence of a completed function call and
// returns the function_call_output frame and the response.create frame.
func runToolCall(t *testing.T, fc *fakeConn, inject func(map[string]any), name, args string) (map[string]any, map[string]any) {
	t.Helper()
	inject(itemCreatedFrame(map[string]any{
		"id": "call_item", "type": "function_call", "name": name, "call_id": "call_1",
	}))
	inject(map[string]any{
		"type": events.TypeResponseFunctionCallArgumentsDelta,
		"item_id": "call_item", "call_id": "call_1", "delta": args,
	})
	inject(map[string]any{
		"type": events.TypeResponseOutputItemDone,
		"item": map[string]any{"id": "call_item", "type": "function_call", "status": "completed"},
	})

	output := nextWrite(t, fc)
	require.Equal(t, "conversation.item.create", output["type"])
	response := nextWrite(t, fc)
	require.Equal(t, "response.create", response["type"])
	return output, response
}

func TestToolCallRoundTrip(t *testing.T) {
	c, fc, inject := newTestClient(t)
	nextWrite(t, fc)

	var got map[string]any
	require.NoError(t, c.AddTool(tool.Tool{Name: "greet"}, func(ctx context.Context, args map[string]any) (any, error) {
		got = args
		return map[string]any{"greeting": "hi " + args["name"].(string)}, nil
	}))
	nextWrite(t, fc)

	output, _ := runToolCall(t, fc, inject, "greet", `{"name": "Ada"}`)
	item := output["item"].(map[string]any)
	assert.Equal(t, "function_call_output", item["type"])
	assert.Equal(t, "call_1", item["call_id"])
	assert.JSONEq(t, `{"greeting":"hi Ada"}`, item["output"].(string))
	assert.Equal(t, "Ada", got["name"])
}

func TestToolCallRepairsMalformedArguments(t *testing.T) {
	c, fc, inject := newTestClient(t)
	nextWrite(t, fc)

	var got map[string]any
	require.NoError(t, c.AddTool(tool.Tool{Name: "echo"}, func(ctx context.Context, args map[string]any) (any, error) {
		got = args
		return "ok", nil
	}))
	nextWrite(t, fc)

	runToolCall(t, fc, inject, "echo", `{"message": "I said "hello" to him"}`)
	require.NotNil(t, got)
	assert.Contains(t, got["message"], "hello")
}

func TestToolCallErrorStillRequestsResponse(t *testing.T) {
	c, fc, inject := newTestClient(t)
	nextWrite(t, fc)

	require.NoError(t, c.AddTool(tool.Tool{Name: "fail"}, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("backend unavailable")
	}))
	nextWrite(t, fc)

	output, _ := runToolCall(t, fc, inject, "fail", `{}`)
	assert.JSONEq(t, `{"error":"backend unavailable"}`, output["item"].(map[string]any)["output"].(string))
}

func TestUnregisteredToolReportsError(t *testing.T) {
	_, fc, inject := newTestClient(t)
	nextWrite(t, fc)

	output, _ := runToolCall(t, fc, inject, "no_such_tool", `{}`)
	assert.Contains(t, output["item"].(map[string]any)["output"].(string), "not registered")
}

func TestCancelResponseValidation(t *testing.T) {
	c, fc, inject := newTestClient(t)
	nextWrite(t, fc)

	_, err := c.CancelResponse("missing", 0)
	assert.ErrorContains(t, err, "not found")

	inject(itemCreatedFrame(map[string]any{"id": "f1", "type": "function_call", "name": "x", "call_id": "c1"}))
	_, err = c.CancelResponse("f1", 0)
	assert.ErrorContains(t, err, "message")

	inject(itemCreatedFrame(map[string]any{"id": "u1", "type": "message", "role": "user"}))
	_, err = c.CancelResponse("u1", 0)
	assert.ErrorContains(t, err, "assistant")

	inject(itemCreatedFrame(map[string]any{
		"id": "a0", "type": "message", "role": "assistant",
		"content": []any{map[string]any{"type": "text", "text": "hi"}},
	}))
	_, err = c.CancelResponse("a0", 0)
	assert.ErrorContains(t, err, "audio")
}

func TestCancelResponseTruncatesAtSampleOffset(t *testing.T) {
	c, fc, inject := newTestClient(t)
	nextWrite(t, fc)

	inject(itemCreatedFrame(map[string]any{
		"id": "a1", "type": "message", "role": "assistant",
		"content": []any{
			map[string]any{"type": "text", "text": "spoken"},
			map[string]any{"type": "audio"},
		},
	}))

	item, err := c.CancelResponse("a1", 36_000)
	require.NoError(t, err)
	assert.Equal(t, "a1", item.ID)

	cancel := nextWrite(t, fc)
	assert.Equal(t, "response.cancel", cancel["type"])
	truncate := nextWrite(t, fc)
	assert.Equal(t, "conversation.item.truncate", truncate["type"])
	assert.Equal(t, "a1", truncate["item_id"])
	assert.Equal(t, float64(1), truncate["content_index"])
	// 36000 samples at 24kHz = 1500ms
	assert.Equal(t, float64(1500), truncate["audio_end_ms"])
}

func TestBareCancelResponse(t *testing.T) {
	c, fc, _ := newTestClient(t)
	nextWrite(t, fc)

	item, err := c.CancelResponse("", 0)
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.Equal(t, "response.cancel", nextWrite(t, fc)["type"])
}

func TestManualTurnCommitsBufferedAudio(t *testing.T) {
	c, fc, inject := newTestClient(t)
	nextWrite(t, fc)

	// Disable server-side turn detection: commits become the client's job.
	require.NoError(t, c.UpdateSession(SessionPatch{SetTurnDetection: true}))
	nextWrite(t, fc)

	audio := []byte{1, 2, 3, 4, 5, 6}
	require.NoError(t, c.AppendInputAudio(audio))
	assert.Equal(t, "input_audio_buffer.append", nextWrite(t, fc)["type"])

	require.NoError(t, c.CreateResponse())
	assert.Equal(t, "input_audio_buffer.commit", nextWrite(t, fc)["type"])
	assert.Equal(t, "response.create", nextWrite(t, fc)["type"])

	// The committed audio attaches to the next user message.
	inject(itemCreatedFrame(map[string]any{"id": "u1", "type": "message", "role": "user"}))
	item := c.Conversation().Item("u1")
	require.NotNil(t, item)
	require.Len(t, item.Formatted.Audio, 1)
	assert.Equal(t, audio, item.Formatted.Audio[0])

	// Nothing left to commit on the next turn.
	require.NoError(t, c.CreateResponse())
	assert.Equal(t, "response.create", nextWrite(t, fc)["type"])
}

func TestServerVadSkipsCommit(t *testing.T) {
	c, fc, _ := newTestClient(t)
	nextWrite(t, fc)

	require.NoError(t, c.AppendInputAudio([]byte{1, 2}))
	nextWrite(t, fc)
	require.NoError(t, c.CreateResponse())
	assert.Equal(t, "response.create", nextWrite(t, fc)["type"])
}

func TestAppendInputAudioEmptyIsNoop(t *testing.T) {
	c, fc, _ := newTestClient(t)
	nextWrite(t, fc)

	require.NoError(t, c.AppendInputAudio(nil))
	select {
	case data := <-fc.writes:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWaitForNextItem(t *testing.T) {
	c, fc, inject := newTestClient(t)
	nextWrite(t, fc)

	type result struct {
		item *Item
		err  error
	}
	done := make(chan result, 1)
	go func() {
		item, err := c.WaitForNextItem(context.Background())
		done <- result{item, err}
	}()
	time.Sleep(20 * time.Millisecond)

	inject(itemCreatedFrame(map[string]any{"id": "u1", "type": "message", "role": "user"}))
	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, "u1", r.item.ID)
}

func TestWaitForNextItemFailsOnDisconnect(t *testing.T) {
	c, fc, _ := newTestClient(t)
	nextWrite(t, fc)

	done := make(chan error, 1)
	go func() {
		_, err := c.WaitForNextItem(context.Background())
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)

	c.Disconnect()
	assert.ErrorIs(t, <-done, ErrConnectionClosed)

	// Rejected outright once disconnected.
	_, err := c.WaitForNextItem(context.Background())
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestSendWhileDisconnectedFails(t *testing.T) {
	c := NewClient(WithKey("k"))
	assert.ErrorIs(t, c.SendUserText("hi"), ErrNotConnected)
}

func TestSendUserTextWiresMessageAndResponse(t *testing.T) {
	c, fc, _ := newTestClient(t)
	nextWrite(t, fc)

	require.NoError(t, c.SendUserText("what time is it"))
	create := nextWrite(t, fc)
	require.Equal(t, "conversation.item.create", create["type"])
	item := create["item"].(map[string]any)
	assert.Equal(t, "message", item["type"])
	assert.Equal(t, "user", item["role"])
	parts := item["content"].([]any)
	require.Len(t, parts, 1)
	assert.Equal(t, "input_text", parts[0].(map[string]any)["type"])
	assert.Equal(t, "what time is it", parts[0].(map[string]any)["text"])
	assert.Equal(t, "response.create", nextWrite(t, fc)["type"])
}

func TestRealtimeEventMirror(t *testing.T) {
	c, fc, inject := newTestClient(t)

	var mu sync.Mutex
	var seen []string
	c.On(EventRealtime, func(evt any) {
		mu.Lock()
		seen = append(seen, evt.(LoggedEvent).Source)
		mu.Unlock()
	})

	require.NoError(t, c.SendUserText("hi"))
	nextWrite(t, fc) // conversation.item.create
	nextWrite(t, fc) // response.create
	inject(map[string]any{"type": events.TypeSessionCreated})

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, "client")
	assert.Contains(t, seen, "server")
}

func TestSessionPatchMerge(t *testing.T) {
	cfg := defaultSessionConfig("base", "shimmer", 0.8)

	voice := "alloy"
	cfg.apply(SessionPatch{Voice: &voice})
	assert.Equal(t, "alloy", cfg.Voice)
	assert.Equal(t, "base", cfg.Instructions)
	assert.Equal(t, 0.8, cfg.Temperature)
	require.NotNil(t, cfg.TurnDetection)

	cfg.apply(SessionPatch{SetTurnDetection: true})
	assert.Nil(t, cfg.TurnDetection)

	temp := 0.6
	cfg.apply(SessionPatch{Temperature: &temp})
	assert.Equal(t, 0.6, cfg.Temperature)
	assert.Nil(t, cfg.TurnDetection)
}

func TestResetRestoresDefaults(t *testing.T) {
	c, fc, _ := newTestClient(t)
	nextWrite(t, fc)

	require.NoError(t, c.AddTool(tool.Tool{Name: "t"}, func(ctx context.Context, args map[string]any) (any, error) { return nil, nil }))
	nextWrite(t, fc)
	voice := "alloy"
	require.NoError(t, c.UpdateSession(SessionPatch{Voice: &voice}))
	nextWrite(t, fc)

	c.Reset()
	assert.False(t, c.IsConnected())
	c.mu.Lock()
	assert.Equal(t, "shimmer", c.session.Voice)
	c.mu.Unlock()
	assert.Equal(t, 0, c.tools.Len())
}
