package realtime

import (
	"log/slog"
	"os"
	"time"
)

const (
	ApiKeyEnvVarNameShort = "OPENAI_KEY"
	ApiKeyEnvVarNameLong  = "OPENAI_API_KEY"

	defaultURL = "wss://api.openai.com/v1/realtime"

	// WireSampleRate is the PCM16 sample rate the realtime API speaks.
	WireSampleRate = 24_000
)

type clientConfig struct {
	url          string
	model        string
	apiKey       string
	instructions string
	voice        string
	temperature  float64
	sampleRate   int
	latencyMS    int
	audio        bool
	logger       *slog.Logger
}

func (c *clientConfig) latency() time.Duration {
	return time.Duration(c.latencyMS) * time.Millisecond
}

type ClientOption func(*clientConfig)

func WithURL(url string) ClientOption {
	return func(o *clientConfig) {
		o.url = url
	}
}

func WithModel(model string) ClientOption {
	return func(o *clientConfig) {
		o.model = model
	}
}

func WithKey(apiKey string) ClientOption {
	return func(o *clientConfig) {
		o.apiKey = apiKey
	}
}

func WithEnvKey(vars ...string) ClientOption {
	return func(o *clientConfig) {
		for _, envVarName := range vars {
			if k := os.Getenv(envVarName); k != "" {
				o.apiKey = k
				return
			}
		}
	}
}

func WithInstructions(instructions string) ClientOption {
	return func(o *clientConfig) {
		o.instructions = instructions
	}
}

func WithVoice(voice string) ClientOption {
	return func(o *clientConfig) {
		o.voice = voice
	}
}

func WithTemperature(temperature float64) ClientOption {
	return func(o *clientConfig) {
		o.temperature = temperature
	}
}

// WithAudio enables the local audio IO path at the given device sample
// rate and chunking latency.
func WithAudio(sampleRate, latencyMS int) ClientOption {
	return func(o *clientConfig) {
		o.audio = true
		o.sampleRate = sampleRate
		o.latencyMS = latencyMS
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(o *clientConfig) {
		o.logger = logger
	}
}

func WithDefaultLogger() ClientOption {
	return WithLogger(slog.Default())
}

func WithOptions(opts ...ClientOption) ClientOption {
	return func(o *clientConfig) {
		for _, opt := range opts {
			opt(o)
		}
	}
}

func withDefaults() ClientOption {
	return WithOptions(
		WithLogger(slog.New(slog.DiscardHandler)),
		WithURL(defaultURL),
		WithModel("gpt-4o-realtime-preview-2024-12-17"),
		WithVoice("shimmer"),
		WithInstructions("You are a university student-services assistant. Be helpful and concise."),
		WithTemperature(0.8),
		WithEnvKey(ApiKeyEnvVarNameShort, ApiKeyEnvVarNameLong),
		func(o *clientConfig) {
			o.sampleRate = WireSampleRate
			o.latencyMS = 200
		},
	)
}
