package realtime

import (
	"github.com/campuskit/campuskit-go/events"
	"github.com/campuskit/campuskit-go/tool"
)

// SessionConfig is the locally-held session state, pushed to the server
// on connect and after every change while connected.
type SessionConfig struct {
	Modalities              []string
	Instructions            string
	Voice                   string
	InputAudioFormat        events.AudioFormat
	OutputAudioFormat       events.AudioFormat
	InputAudioTranscription *events.InputAudioTranscription
	TurnDetection           *events.TurnDetection
	Tools                   []tool.Tool
	ToolChoice              tool.Choice
	Temperature             float64
	MaxResponseOutputTokens int
}

func defaultSessionConfig(instructions, voice string, temperature float64) SessionConfig {
	return SessionConfig{
		Modalities:              []string{"text", "audio"},
		Instructions:            instructions,
		Voice:                   voice,
		InputAudioFormat:        events.AudioFormatPCM16,
		OutputAudioFormat:       events.AudioFormatPCM16,
		InputAudioTranscription: &events.InputAudioTranscription{Model: "whisper-1"},
		TurnDetection:           &events.TurnDetection{Type: "server_vad"},
		ToolChoice:              tool.ChoiceAuto,
		Temperature:             temperature,
		MaxResponseOutputTokens: 4096,
	}
}

// SessionPatch is a partial session update. Nil fields are left alone;
// set fields overwrite (shallow merge). TurnDetection and
// InputAudioTranscription accept explicit nil through their Set* flags so
// callers can switch turn detection off.
type SessionPatch struct {
	Modalities              []string
	Instructions            *string
	Voice                   *string
	InputAudioFormat        *events.AudioFormat
	OutputAudioFormat       *events.AudioFormat
	InputAudioTranscription *events.InputAudioTranscription
	SetInputAudioTranscription bool
	TurnDetection           *events.TurnDetection
	SetTurnDetection        bool
	Tools                   []tool.Tool
	ToolChoice              *tool.Choice
	Temperature             *float64
	MaxResponseOutputTokens *int
}

func (c *SessionConfig) apply(p SessionPatch) {
	if p.Modalities != nil {
		c.Modalities = p.Modalities
	}
	if p.Instructions != nil {
		c.Instructions = *p.Instructions
	}
	if p.Voice != nil {
		c.Voice = *p.Voice
	}
	if p.InputAudioFormat != nil {
		c.InputAudioFormat = *p.InputAudioFormat
	}
	if p.OutputAudioFormat != nil {
		c.OutputAudioFormat = *p.OutputAudioFormat
	}
	if p.SetInputAudioTranscription || p.InputAudioTranscription != nil {
		c.InputAudioTranscription = p.InputAudioTranscription
	}
	if p.SetTurnDetection || p.TurnDetection != nil {
		c.TurnDetection = p.TurnDetection
	}
	if p.Tools != nil {
		c.Tools = p.Tools
	}
	if p.ToolChoice != nil {
		c.ToolChoice = *p.ToolChoice
	}
	if p.Temperature != nil {
		c.Temperature = *p.Temperature
	}
	if p.MaxResponseOutputTokens != nil {
		c.MaxResponseOutputTokens = *p.MaxResponseOutputTokens
	}
}

// payload builds the wire session object with the effective tool list:
// explicitly configured tools plus registered-handler tools, each tagged
// type "function".
func (c *SessionConfig) payload(registered []tool.Tool) events.SessionUpdate {
	tools := make([]tool.Tool, 0, len(c.Tools)+len(registered))
	for _, t := range c.Tools {
		t.Type = "function"
		tools = append(tools, t)
	}
	tools = append(tools, registered...)

	return events.SessionUpdate{
		Modalities:              c.Modalities,
		Instructions:            c.Instructions,
		Voice:                   c.Voice,
		InputAudioFormat:        c.InputAudioFormat,
		OutputAudioFormat:       c.OutputAudioFormat,
		InputAudioTranscription: c.InputAudioTranscription,
		TurnDetection:           c.TurnDetection,
		Tools:                   tools,
		ToolChoice:              c.ToolChoice,
		Temperature:             c.Temperature,
		MaxResponseOutputTokens: c.MaxResponseOutputTokens,
	}
}
