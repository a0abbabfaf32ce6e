package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/require"
)

// echoServer upgrades each request and echoes text frames back, prefixed
// with "echo:".
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			t.Logf("upgrade failed: %v", err)
			return
		}
		go func() {
			defer conn.Close()
			for {
				data, op, err := wsutil.ReadClientData(conn)
				if err != nil {
					return
				}
				if op == ws.OpText {
					if err := wsutil.WriteServerText(conn, append([]byte("echo:"), data...)); err != nil {
						return
					}
				}
			}
		}()
	}))
}

func TestClientEcho(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan string, 1)
	client, err := Connect(ctx, ClientConfig{
		URL:         "ws" + strings.TrimPrefix(srv.URL, "http"),
		DialTimeout: time.Second,
		Logger:      slog.New(slog.DiscardHandler),
		OnText: func(data []byte) error {
			received <- string(data)
			return nil
		},
	})
	require.NoError(t, err)
	require.NotNil(t, client)

	client.WriteText([]byte("hello"))

	select {
	case msg := <-received:
		require.Equal(t, "echo:hello", msg)
	case <-ctx.Done():
		t.Fatal("timed out waiting for echo")
	}

	require.NoError(t, client.Close(ctx))
}

func TestClientCloseIdempotentDone(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Connect(ctx, ClientConfig{
		URL:    "ws" + strings.TrimPrefix(srv.URL, "http"),
		Logger: slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)

	require.NoError(t, client.Close(ctx))

	select {
	case <-client.Done():
	default:
		t.Fatal("Done must be closed after Close")
	}
}
