// Package extract pulls structured billing fields out of receipt and
// ticket photos using a vision chat completion with a strict JSON
// schema response format.
package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared/constant"
)

// ErrNoImages is returned when Extract is called without input.
var ErrNoImages = errors.New("extract: at least one image is required")

// ReceiptInfo holds the fields extracted from one or more receipt
// images. Missing scalar fields come back empty, missing lists empty.
type ReceiptInfo struct {
	Company    string    `json:"company"`
	TaxID      string    `json:"tax_id"`
	Date       string    `json:"date"`
	Products   []string  `json:"products"`
	Units      []string  `json:"units"`
	Amounts    []float64 `json:"amounts"`
	BillingKey string    `json:"billing_key"`
	Location   string    `json:"location"`
	Phone      string    `json:"phone"`
}

const systemPrompt = `You are an expert at extracting information from receipts and invoices.

Extract the company name, company tax id, ticket date, the list of products,
the list of units/quantities, the list of amounts per product, the billing
key, the company location and the company phone number.

Rules:
- If a field is not found, return an empty string ("")
- For products, units and amounts, return empty lists when not found
- Amounts must be decimal numbers
- Units include the unit of measure when available (e.g. "2 kg", "3 pcs")
- With multiple images, combine the information found
- Validate that tax ids have a plausible format
- Dates use the YYYY-MM-DD format`

var receiptSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"company":     map[string]any{"type": "string", "description": "Company name"},
		"tax_id":      map[string]any{"type": "string", "description": "Company tax id"},
		"date":        map[string]any{"type": "string", "description": "Ticket date, YYYY-MM-DD"},
		"products":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"units":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"amounts":     map[string]any{"type": "array", "items": map[string]any{"type": "number"}},
		"billing_key": map[string]any{"type": "string", "description": "Billing key"},
		"location":    map[string]any{"type": "string", "description": "Company location"},
		"phone":       map[string]any{"type": "string", "description": "Company phone number"},
	},
	"required": []string{
		"company", "tax_id", "date", "products", "units", "amounts",
		"billing_key", "location", "phone",
	},
	"additionalProperties": false,
}

// Extractor runs the vision extraction against a chat-completions
// backend.
type Extractor struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

type Option func(*Extractor)

func WithModel(model string) Option {
	return func(e *Extractor) { e.model = model }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

func New(client openai.Client, opts ...Option) *Extractor {
	e := &Extractor{
		client: client,
		model:  openai.ChatModelGPT4o,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract sends the raw image bytes as data URLs and decodes the
// schema-constrained response.
func (e *Extractor) Extract(ctx context.Context, images [][]byte) (*ReceiptInfo, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(images)+1)
	parts = append(parts, openai.ChatCompletionContentPartUnionParam{
		OfText: &openai.ChatCompletionContentPartTextParam{
			Text: "Analyze the following images and extract the requested information.",
			Type: constant.ValueOf[constant.Text](),
		},
	})
	for _, img := range images {
		parts = append(parts, openai.ChatCompletionContentPartUnionParam{
			OfImageURL: &openai.ChatCompletionContentPartImageParam{
				ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
					URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img),
				},
			},
		})
	}

	e.logger.Debug("extracting receipt info", slog.Int("images", len(images)))

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: e.model,
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
						OfArrayOfContentParts: parts,
					},
					Role: constant.ValueOf[constant.User](),
				},
			},
		},
		MaxTokens:   param.NewOpt[int64](1000),
		Temperature: param.NewOpt(0.1),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "receipt_info",
					Strict: param.NewOpt(true),
					Schema: receiptSchema,
				},
				Type: constant.ValueOf[constant.JSONSchema](),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extract: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("extract: completion returned no choices")
	}

	var info ReceiptInfo
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &info); err != nil {
		return nil, fmt.Errorf("extract: decode response: %w", err)
	}
	return &info, nil
}
