package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitekit/internal/config"
)

// liveServer serves s over HTTP with its websocket hub running.
func liveServer(t *testing.T, s *Server) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.runWebSocketHub(ctx)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if conn != nil {
		t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	}
	return conn, err
}

func readUpdate(t *testing.T, conn *websocket.Conn) UpdateMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func hotReload(cfg *config.Config) { cfg.Server.HotReload = true }

func TestWebSocketBroadcast(t *testing.T) {
	s := newTestServer(t, hotReload)
	srv := liveServer(t, s)

	conn, err := dial(t, srv, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.broadcastMessage(UpdateMessage{Type: MessageFullReload})

	msg := readUpdate(t, conn)
	assert.Equal(t, MessageFullReload, msg.Type)
	assert.True(t, msg.Timestamp.Equal(fixedNow))

	conn.Close(websocket.StatusNormalClosure, "bye")
	assert.Eventually(t, func() bool { return s.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	s := newTestServer(t, hotReload)
	srv := liveServer(t, s)

	_, err := dial(t, srv, http.Header{"Origin": {"https://evil.example"}})
	assert.Error(t, err)
	assert.Zero(t, s.ClientCount())
}

func TestWebSocketDisabledWithoutHotReload(t *testing.T) {
	s := newTestServer(t, nil)
	srv := liveServer(t, s)

	_, err := dial(t, srv, nil)
	assert.Error(t, err)
}

func TestLogoChangeBroadcastsUpdate(t *testing.T) {
	var dir string
	s := newTestServer(t, func(cfg *config.Config) {
		hotReload(cfg)
		dir = cfg.Logo.Dir
	})
	srv := liveServer(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, s.setupFileWatcher(ctx))

	conn, err := dial(t, srv, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "logo.svg"), []byte(svgLogo), 0o600))

	msg := readUpdate(t, conn)
	assert.Equal(t, MessageLogoUpdate, msg.Type)
	assert.Equal(t, "/logo.svg", msg.Src)

	require.NoError(t, os.Remove(filepath.Join(dir, "logo.svg")))

	msg = readUpdate(t, conn)
	assert.Equal(t, MessageLogoUpdate, msg.Type)
	assert.Empty(t, msg.Src, "text logo after removal")
}

func TestOriginHosts(t *testing.T) {
	assert.Equal(t, []string{"partner.example", "localhost:5173"},
		originHosts([]string{"https://partner.example", "http://localhost:5173", "not a url", ""}))
}
