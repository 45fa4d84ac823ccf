package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitegen/internal/build"
	"github.com/conneroisu/sitegen/internal/config"
	"github.com/conneroisu/sitegen/internal/logging"
)

func testServer(t *testing.T) (*DevServer, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Input:  filepath.Join(dir, "site"),
		Output: filepath.Join(dir, "out"),
		Templates: config.TemplatesConfig{
			Dir:        "templates",
			Extensions: []string{".html"},
			OutputExt:  ".html",
		},
		Server: config.ServerConfig{Host: "localhost", Port: 8000},
		Watch:  config.WatchConfig{Debounce: 50 * time.Millisecond},
	}
	require.NoError(t, os.MkdirAll(cfg.Input, 0o755))
	require.NoError(t, os.MkdirAll(cfg.Output, 0o755))

	s, err := New(cfg, build.New(cfg, logging.NewNop()), logging.NewNop())
	require.NoError(t, err)
	return s, cfg
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestStaticServesAsset(t *testing.T) {
	s, cfg := testServer(t)
	write(t, filepath.Join(cfg.Output, "style.css"), "body {}")

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/style.css")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "body {}", string(body))
	assert.NotContains(t, string(body), "WebSocket")
}

func TestStaticInjectsIntoHTML(t *testing.T) {
	s, cfg := testServer(t)
	write(t, filepath.Join(cfg.Output, "index.html"),
		`<html><body><h1>Home</h1></body></html>`)

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "<h1>Home</h1>")
	assert.Contains(t, string(body), "new WebSocket")
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestStaticDirectoryResolvesIndex(t *testing.T) {
	s, cfg := testServer(t)
	write(t, filepath.Join(cfg.Output, "docs", "index.html"),
		`<html><body>docs</body></html>`)

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/docs/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "docs")
}

func TestStaticMissingPathIs404(t *testing.T) {
	s, _ := testServer(t)

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/nope.html")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStaticRejectsTraversal(t *testing.T) {
	s, cfg := testServer(t)
	write(t, filepath.Join(filepath.Dir(cfg.Output), "secret.txt"), "secret")

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/../secret.txt", nil)
	require.NoError(t, err)
	req.URL.Path = "/../secret.txt"
	req.URL.RawPath = ""

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "secret")
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := testServer(t)

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	s, _ := testServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go s.runHub(ctx)

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		conn, _, err := websocket.Dial(ctx, wsURL, nil)
		require.NoError(t, err)
		defer conn.Close(websocket.StatusNormalClosure, "")
		conns = append(conns, conn)
	}

	// Wait for the hub to register all connections.
	require.Eventually(t, func() bool {
		s.clientsMu.RLock()
		defer s.clientsMu.RUnlock()
		return len(s.clients) == 3
	}, 3*time.Second, 10*time.Millisecond)

	s.Broadcast()

	for _, conn := range conns {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, `{"command":"reload"}`, string(data))
	}
}

func TestDisconnectedClientIsDropped(t *testing.T) {
	s, _ := testServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go s.runHub(ctx)

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s.clientsMu.RLock()
		defer s.clientsMu.RUnlock()
		return len(s.clients) == 1
	}, 3*time.Second, 10*time.Millisecond)

	conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		s.clientsMu.RLock()
		defer s.clientsMu.RUnlock()
		return len(s.clients) == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestDisconnectDuringBroadcastsIsObserved(t *testing.T) {
	s, _ := testServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go s.runHub(ctx)

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	leaving, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	staying, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer staying.Close(websocket.StatusNormalClosure, "")

	// Drain the surviving client so its send buffer never fills.
	go func() {
		for {
			if _, _, err := staying.Read(ctx); err != nil {
				return
			}
		}
	}()

	require.Eventually(t, func() bool {
		s.clientsMu.RLock()
		defer s.clientsMu.RUnlock()
		return len(s.clients) == 2
	}, 3*time.Second, 10*time.Millisecond)

	// Disconnect while the hub keeps handling broadcasts; the
	// unregister must still land instead of being dropped.
	leaving.Close(websocket.StatusNormalClosure, "")
	for i := 0; i < 20; i++ {
		s.Broadcast()
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		s.clientsMu.RLock()
		defer s.clientsMu.RUnlock()
		return len(s.clients) == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestBroadcastAfterHubStopReturns(t *testing.T) {
	s, _ := testServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	go s.runHub(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Broadcast()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("broadcast blocked after the hub stopped")
	}
}

func TestBindErrorOnOccupiedPort(t *testing.T) {
	s, cfg := testServer(t)

	// Occupy a port, then point the server at it.
	occupied := httptest.NewServer(http.NotFoundHandler())
	defer occupied.Close()

	_, portStr, ok := strings.Cut(strings.TrimPrefix(occupied.URL, "http://"), ":")
	require.True(t, ok)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = port

	err = s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bind")
}
