// Package transcribe turns unstructured interview transcripts into a
// structured dialogue: the list of speakers and their turns in order.
package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared/constant"
)

// Turn is one intervention in the dialogue.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Dialogue is the structured result of processing a transcript.
type Dialogue struct {
	Speakers []string `json:"speakers"`
	Turns    []Turn   `json:"dialogue"`
}

const systemPrompt = `You are an expert at processing transcripts and organizing dialogue.

Analyze the provided text and extract:
1. The list of all participants/speakers in the conversation
2. The dialogue organized chronologically, identifying who says what

Rules:
- Correctly identify who is speaking at each moment
- Keep the chronological order of the dialogue
- Group the text of each intervention coherently
- If a speaker is not explicitly named, use "Speaker Unknown"
- Clean up and organize the text while preserving its original meaning`

var dialogueSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"speakers": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"dialogue": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"speaker": map[string]any{"type": "string"},
					"text":    map[string]any{"type": "string"},
				},
				"required":             []string{"speaker", "text"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"speakers", "dialogue"},
	"additionalProperties": false,
}

// Transcriber structures transcripts through a chat-completions backend.
type Transcriber struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

type Option func(*Transcriber)

func WithModel(model string) Option {
	return func(t *Transcriber) { t.model = model }
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Transcriber) { t.logger = logger }
}

func New(client openai.Client, opts ...Option) *Transcriber {
	t := &Transcriber{
		client: client,
		model:  openai.ChatModelGPT4o,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Process structures the given transcript text.
func (t *Transcriber) Process(ctx context.Context, text string) (*Dialogue, error) {
	if text == "" {
		return nil, errors.New("transcribe: empty transcript")
	}
	t.logger.Debug("processing transcript", slog.Int("chars", len(text)))

	resp, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: t.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: param.NewOpt(systemPrompt),
					},
					Role: constant.ValueOf[constant.System](),
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: param.NewOpt("Analyze and structure the following text:\n\n" + text),
					},
					Role: constant.ValueOf[constant.User](),
				},
			},
		},
		Temperature: param.NewOpt(0.1),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "dialogue_info",
					Strict: param.NewOpt(true),
					Schema: dialogueSchema,
				},
				Type: constant.ValueOf[constant.JSONSchema](),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("transcribe: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("transcribe: completion returned no choices")
	}

	var dialogue Dialogue
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &dialogue); err != nil {
		return nil, fmt.Errorf("transcribe: decode response: %w", err)
	}
	return &dialogue, nil
}
