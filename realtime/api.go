package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/campuskit/campuskit-go/events"
	"github.com/campuskit/campuskit-go/internal/websocket"
)

// wsConn is the duplex connection the API drives. Satisfied by the
// internal websocket client; faked in tests.
type wsConn interface {
	WriteText(data []byte)
	Close(ctx context.Context) error
}

type dialFunc func(ctx context.Context, config websocket.ClientConfig) (wsConn, error)

func defaultDial(ctx context.Context, config websocket.ClientConfig) (wsConn, error) {
	return websocket.Connect(ctx, config)
}

// API is the event transport: it serializes outgoing envelopes, parses
// inbound frames and broadcasts each event to listeners registered under
// "client.<type>"/"server.<type>" and the matching wildcard channel.
type API struct {
	*emitter

	url    string
	apiKey string
	model  string
	logger *slog.Logger
	dial   dialFunc

	mu         sync.Mutex
	conn       wsConn
	connecting bool
}

func newAPI(url, apiKey, model string, logger *slog.Logger) *API {
	return &API{
		emitter: newEmitter(),
		url:     url,
		apiKey:  apiKey,
		model:   model,
		logger:  logger,
		dial:    defaultDial,
	}
}

func (a *API) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn != nil
}

// Connect establishes the duplex connection and starts the receive loop.
// The connecting flag spans the dial so a concurrent Connect cannot race
// in and overwrite the connection.
func (a *API) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.conn != nil || a.connecting {
		a.mu.Unlock()
		return ErrAlreadyConnected
	}
	a.connecting = true
	a.mu.Unlock()

	headers := http.Header{}
	headers.Add("Authorization", fmt.Sprintf("Bearer %s", a.apiKey))
	headers.Add("OpenAI-Beta", "realtime=v1")

	conn, err := a.dial(ctx, websocket.ClientConfig{
		URL:     fmt.Sprintf("%s?model=%s", a.url, a.model),
		Headers: headers,
		Logger:  a.logger,
		OnText:  a.handleMessage,
	})
	if err != nil {
		a.mu.Lock()
		a.connecting = false
		a.mu.Unlock()
		return fmt.Errorf("realtime: connect: %w", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.connecting = false
	a.mu.Unlock()
	a.emitter.reopen()

	a.logger.Debug("connected", slog.String("url", a.url))
	return nil
}

// Disconnect is idempotent. Pending WaitForNext calls fail with
// ErrConnectionClosed.
func (a *API) Disconnect() {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()

	a.emitter.shutdown()
	if conn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := conn.Close(ctx); err != nil {
			a.logger.Debug("close failed", slog.Any("err", err))
		}
		a.logger.Debug("disconnected", slog.String("url", a.url))
	}
}

// Send marshals evt into an {event_id, type, ...} envelope, notifies
// local listeners first so observers see outgoing traffic in order, then
// transmits.
func (a *API) Send(evt events.ClientEvent) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("realtime: marshal %q: %w", evt.EventType(), err)
	}

	a.dispatch("client."+evt.EventType(), evt)
	a.dispatch("client.*", evt)

	a.logger.Debug("sent", slog.String("type", evt.EventType()))
	conn.WriteText(data)
	return nil
}

// handleMessage is the receive loop body: parse, surface protocol errors,
// dispatch to type-specific and wildcard channels.
func (a *API) handleMessage(data []byte) error {
	evt, err := events.ParseServer(data)
	if err != nil {
		a.logger.Error("failed to parse event", slog.Any("err", err))
		return nil
	}

	if errEvt, ok := evt.(*events.ErrorEvent); ok {
		a.logger.Error("server error", slog.Any("err", errEvt))
	}

	a.logger.Debug("received", slog.String("type", evt.ServerType()))
	a.dispatch("server."+evt.ServerType(), evt)
	a.dispatch("server.*", evt)
	return nil
}
