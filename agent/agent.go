// Package agent implements a campus-services chat agent that answers
// questions by looping over chat completions with function tools backed
// by calendar and student-directory interfaces.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared/constant"

	"github.com/campuskit/campuskit-go/internal/store"
)

// maxToolIterations bounds a single Send: after this many tool rounds
// the loop stops and the last assistant text is returned as-is.
const maxToolIterations = 5

const defaultSystemPrompt = `You are a helpful campus services assistant. You can check the
advisor's busy calendar slots, schedule 30-minute appointments, and look
up student records, enrollments and library loans by student id. Answer
concisely and only use tools when the question requires them.`

// Agent runs the tool loop and persists per-session history.
type Agent struct {
	client       openai.Client
	model        string
	temperature  float64
	systemPrompt string
	logger       *slog.Logger

	calendar  Calendar
	directory StudentDirectory
	sessions  store.SessionRepository
}

type Option func(*Agent)

func WithModel(model string) Option {
	return func(a *Agent) { a.model = model }
}

func WithTemperature(temperature float64) Option {
	return func(a *Agent) { a.temperature = temperature }
}

func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) { a.systemPrompt = prompt }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

func New(client openai.Client, calendar Calendar, directory StudentDirectory, sessions store.SessionRepository, opts ...Option) *Agent {
	a := &Agent{
		client:       client,
		model:        openai.ChatModelGPT4o,
		temperature:  0.7,
		systemPrompt: defaultSystemPrompt,
		logger:       slog.New(slog.DiscardHandler),
		calendar:     calendar,
		directory:    directory,
		sessions:     sessions,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Send appends the prompt to the session's history, runs the model with
// tools until it stops calling them (bounded by maxToolIterations), and
// returns the final assistant text. The updated history is persisted
// even when the loop is cut short.
func (a *Agent) Send(ctx context.Context, sessionID, prompt string) (string, error) {
	history, err := a.sessions.Load(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("agent: load session: %w", err)
	}
	if len(history) == 0 {
		history = append(history, store.Message{Role: "system", Content: a.systemPrompt})
	}
	history = append(history, store.Message{Role: "user", Content: prompt})

	var final string
	for iter := 0; iter < maxToolIterations; iter++ {
		resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:       a.model,
			Messages:    toMessageParams(history),
			Tools:       toolDefinitions(),
			Temperature: param.NewOpt(a.temperature),
		})
		if err != nil {
			return "", fmt.Errorf("agent: completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("agent: completion returned no choices")
		}

		msg := resp.Choices[0].Message
		assistant := store.Message{Role: "assistant", Content: msg.Content}
		for _, tc := range msg.ToolCalls {
			assistant.ToolCalls = append(assistant.ToolCalls, store.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		history = append(history, assistant)
		final = msg.Content

		if len(msg.ToolCalls) == 0 {
			break
		}
		for _, tc := range assistant.ToolCalls {
			result := a.callTool(ctx, tc.Name, tc.Arguments)
			history = append(history, store.Message{
				Role:       "tool",
				ToolCallID: tc.ID,
				Content:    result,
			})
		}
	}

	if err := a.sessions.Save(ctx, sessionID, history); err != nil {
		return "", fmt.Errorf("agent: save session: %w", err)
	}
	return final, nil
}

// ClearSession drops the stored history for a session.
func (a *Agent) ClearSession(ctx context.Context, sessionID string) error {
	return a.sessions.Delete(ctx, sessionID)
}

// callTool dispatches one tool call. Failures of any kind become an
// {"error": ...} payload the model can react to; they never abort the
// conversation.
func (a *Agent) callTool(ctx context.Context, name, arguments string) string {
	result, err := a.dispatchTool(ctx, name, arguments)
	if err != nil {
		a.logger.Error("tool call failed", slog.String("tool", name), slog.Any("err", err))
		return errorPayload(err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return errorPayload(fmt.Errorf("encode result: %w", err))
	}
	return string(data)
}

func (a *Agent) dispatchTool(ctx context.Context, name, arguments string) (any, error) {
	var args struct {
		StudentID   string `json:"student_id"`
		Title       string `json:"title"`
		Date        string `json:"date"`
		StartTime   string `json:"start_time"`
		GuestEmail  string `json:"guest_email"`
		Description string `json:"description"`
	}
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return nil, fmt.Errorf("parse arguments: %w", err)
		}
	}

	switch name {
	case "get_busy_slots":
		return a.calendar.BusySlots(ctx)
	case "create_calendar_event":
		return a.calendar.CreateEvent(ctx, Event{
			Title:       args.Title,
			Date:        args.Date,
			StartTime:   args.StartTime,
			GuestEmail:  args.GuestEmail,
			Description: args.Description,
		})
	case "get_student_info":
		return a.directory.Student(ctx, args.StudentID)
	case "get_student_courses":
		return a.directory.Courses(ctx, args.StudentID)
	case "get_library_loans":
		return a.directory.LibraryLoans(ctx, args.StudentID)
	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
}

func errorPayload(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(data)
}

func toolDefinitions() []openai.ChatCompletionToolUnionParam {
	studentIDParams := openai.FunctionParameters{
		"type": "object",
		"properties": map[string]any{
			"student_id": map[string]any{
				"type":        "string",
				"description": "Student id (e.g. A001)",
			},
		},
		"required": []string{"student_id"},
	}

	return []openai.ChatCompletionToolUnionParam{
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "get_busy_slots",
			Description: param.NewOpt("Get the busy calendar slots for the next two weeks"),
			Parameters: openai.FunctionParameters{
				"type":       "object",
				"properties": map[string]any{},
				"required":   []string{},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "create_calendar_event",
			Description: param.NewOpt("Create a 30-minute calendar event, optionally inviting a guest by email"),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"title":       map[string]any{"type": "string", "description": "Event title"},
					"date":        map[string]any{"type": "string", "description": "Date, YYYY-MM-DD"},
					"start_time":  map[string]any{"type": "string", "description": "Start time, HH:MM"},
					"guest_email": map[string]any{"type": "string", "description": "Guest email address"},
					"description": map[string]any{"type": "string", "description": "Event description"},
				},
				"required": []string{"title", "date", "start_time"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "get_student_info",
			Description: param.NewOpt("Get a student's directory record by id"),
			Parameters:  studentIDParams,
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "get_student_courses",
			Description: param.NewOpt("Get a student's course enrollments by id"),
			Parameters:  studentIDParams,
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        "get_library_loans",
			Description: param.NewOpt("Get a student's library loans by id"),
			Parameters:  studentIDParams,
		}),
	}
}

func toMessageParams(history []store.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case "system":
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: param.NewOpt(m.Content),
					},
					Role: constant.ValueOf[constant.System](),
				},
			})
		case "assistant":
			assistant := &openai.ChatCompletionAssistantMessageParam{
				Content: openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: param.NewOpt(m.Content),
				},
				Role: constant.ValueOf[constant.Assistant](),
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
						Type: constant.ValueOf[constant.Function](),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case "tool":
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfTool: &openai.ChatCompletionToolMessageParam{
					Content: openai.ChatCompletionToolMessageParamContentUnion{
						OfString: param.NewOpt(m.Content),
					},
					ToolCallID: m.ToolCallID,
					Role:       constant.ValueOf[constant.Tool](),
				},
			})
		default:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: param.NewOpt(m.Content),
					},
					Role: constant.ValueOf[constant.User](),
				},
			})
		}
	}
	return out
}
