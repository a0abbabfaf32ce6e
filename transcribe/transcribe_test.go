package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialogueServer(t *testing.T, content string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4o",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProcessStructuresDialogue(t *testing.T) {
	body := `{"speakers":["Interviewer","Speaker Unknown"],"dialogue":[` +
		`{"speaker":"Interviewer","text":"Can you describe what happened?"},` +
		`{"speaker":"Speaker Unknown","text":"It started around noon."}]}`

	var req map[string]any
	srv := dialogueServer(t, body, &req)
	client := openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL(srv.URL))

	dialogue, err := New(client).Process(context.Background(), "raw transcript text")
	require.NoError(t, err)
	assert.Equal(t, []string{"Interviewer", "Speaker Unknown"}, dialogue.Speakers)
	require.Len(t, dialogue.Turns, 2)
	assert.Equal(t, "Interviewer", dialogue.Turns[0].Speaker)

	format := req["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, "dialogue_info", format["json_schema"].(map[string]any)["name"])
}

func TestProcessEmptyTranscript(t *testing.T) {
	client := openai.NewClient(option.WithAPIKey("test"))
	_, err := New(client).Process(context.Background(), "")
	assert.ErrorContains(t, err, "empty transcript")
}

func TestReadFileTxt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "interview.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello transcript"), 0o644))

	text, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello transcript", text)
}

func TestReadFileUnsupported(t *testing.T) {
	_, err := ReadFile("interview.docx")
	assert.ErrorContains(t, err, "unsupported file format")
}
