package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/eventstore"
	"git.home.luguber.info/inful/docstream/internal/metrics"
	"git.home.luguber.info/inful/docstream/internal/pipeline"
	"git.home.luguber.info/inful/docstream/internal/stream"
)

const sampleDocument = `{
  "cover": {"title": "Live report"},
  "sections": [
    {"type": "content", "title": "Intro", "content": "Hello"},
    {"type": "table", "title": "Numbers", "headers": ["k", "v"], "rows": [["a", 1]]}
  ]
}`

func newTestServer(t *testing.T, cfg config.RunConfig) (*Server, *stream.Hub) {
	t.Helper()
	hub := stream.NewHub(stream.Options{})
	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	journal := eventstore.NewJournal(store, 10, nil)
	reg := prom.NewRegistry()
	gen := pipeline.NewGenerator(
		pipeline.WithHub(hub),
		pipeline.WithJournal(journal),
		pipeline.WithRecorder(metrics.NewPrometheusRecorder(reg)),
	)
	srv := NewServer(cfg, pipeline.NewRunner(gen), WithRegistry(reg))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = hub.Shutdown(ctx)
		_ = journal.Close()
	})
	return srv, hub
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, config.RunConfig{})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestServerAddrFromConfig(t *testing.T) {
	cfg := config.RunConfig{Streaming: config.StreamingConfig{Host: "0.0.0.0", Port: 8089}}
	srv, _ := newTestServer(t, cfg)
	require.Equal(t, "0.0.0.0:8089", srv.Addr)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, config.RunConfig{})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestTokenAuth(t *testing.T) {
	cfg := config.RunConfig{Streaming: config.StreamingConfig{Auth: config.StreamAuthConfig{Enabled: true, Token: "secret"}}}
	srv, _ := newTestServer(t, cfg)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clients", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "DS_012")

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/clients", nil)
	req.Header.Set("Authorization", "Bearer secret")
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clients?token=secret", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	cfg := config.RunConfig{Streaming: config.StreamingConfig{CORS: config.CORSConfig{Enabled: true, Origins: []string{"https://viewer.example"}}}}
	srv, _ := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/runs", nil)
	req.Header.Set("Origin", "https://viewer.example")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://viewer.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	cfg := config.RunConfig{Security: config.SecurityConfig{RateLimit: config.RateLimitConfig{Enabled: true, Window: time.Minute, Max: 2}}}
	srv, _ := newTestServer(t, cfg)

	for range 2 {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotEmpty(t, w.Header().Get("Retry-After"))
	require.Contains(t, w.Body.String(), "DS_014")
}

func TestRateLimitIgnoresForwardedHeaders(t *testing.T) {
	limit := config.RateLimitConfig{Enabled: true, Window: time.Minute, Max: 2}
	srv, _ := newTestServer(t, config.RunConfig{Security: config.SecurityConfig{RateLimit: limit}})

	allowed := 0
	for i := range 10 {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i))
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code == http.StatusOK {
			allowed++
		}
	}
	require.Equal(t, 2, allowed)
}

func TestRateLimitTrustsForwardedBehindProxy(t *testing.T) {
	sec := config.SecurityConfig{
		RateLimit:      config.RateLimitConfig{Enabled: true, Window: time.Minute, Max: 1},
		TrustForwarded: true,
	}
	srv, _ := newTestServer(t, config.RunConfig{Security: sec})

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Real-IP", ip)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, ip)
	}
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Real-IP", "10.0.0.1")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimiterWindowResets(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newRateLimiter(time.Second, 1, func() time.Time { return now })
	ok, _ := l.Allow("a")
	require.True(t, ok)
	ok, retry := l.Allow("a")
	require.False(t, ok)
	require.Equal(t, time.Second, retry)
	ok, _ = l.Allow("b")
	require.True(t, ok)

	now = now.Add(time.Second)
	ok, _ = l.Allow("a")
	require.True(t, ok)
}

func TestCreateRunRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t, config.RunConfig{})
	for name, body := range map[string]string{
		"not json":    `{`,
		"no document": `{}`,
		"bad section": `{"document":{"cover":{"title":"x"},"sections":[{"type":"nope"}]}}`,
		"bad config":  `{"document":` + sampleDocument + `,"config":{"theme":{"name":"neon"}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body)))
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func readSSE(t *testing.T, sc *bufio.Scanner, until string) []string {
	t.Helper()
	var events []string
	for sc.Scan() {
		line := sc.Text()
		if ev, ok := strings.CutPrefix(line, "event: "); ok {
			events = append(events, ev)
			if ev == until {
				return events
			}
		}
	}
	t.Fatalf("stream ended after %v: %v", events, sc.Err())
	return nil
}

func TestCreateRunStreamsOverSSE(t *testing.T) {
	srv, hub := newTestServer(t, config.RunConfig{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events/live-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return hub.Subscribers("live-1") == 1 }, 2*time.Second, 10*time.Millisecond)

	body := `{"streamId":"live-1","document":` + sampleDocument + `}`
	post, err := http.Post(ts.URL+"/runs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer post.Body.Close()
	require.Equal(t, http.StatusAccepted, post.StatusCode)
	var accepted struct {
		Data RunAccepted `json:"data"`
	}
	require.NoError(t, json.NewDecoder(post.Body).Decode(&accepted))
	require.Equal(t, "live-1", accepted.Data.StreamID)
	require.NotEmpty(t, accepted.Data.RunID)

	events := readSSE(t, bufio.NewScanner(resp.Body), "complete")
	require.Equal(t, []string{"start", "section", "progress", "section", "progress", "complete"}, events)

	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/"+accepted.Data.RunID, nil))
		return w.Code == http.StatusOK && strings.Contains(w.Body.String(), `"completed"`)
	}, 2*time.Second, 10*time.Millisecond)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/unknown", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateRunFailureClosesWaitingViewers(t *testing.T) {
	srv, hub := newTestServer(t, config.RunConfig{})
	viewer := stream.NewChannelTransport(8)
	_, err := hub.Subscribe("early-1", stream.ClientInfo{ID: "viewer"}, viewer)
	require.NoError(t, err)

	// no AI service is wired, so enhancement fails before the stream opens
	body := `{"streamId":"early-1","prompt":{"text":"add a chart"},"document":` + sampleDocument + `}`
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	select {
	case m := <-viewer.Messages():
		require.Equal(t, stream.EventError, m.Event)
		data, ok := m.Data.(stream.ErrorData)
		require.True(t, ok)
		require.Equal(t, pipeline.PhaseAI, data.Phase)
		require.NotEmpty(t, data.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("no terminal event for the waiting viewer")
	}
	require.Eventually(t, func() bool { return hub.Subscribers("early-1") == 0 }, 2*time.Second, 10*time.Millisecond)
	select {
	case <-viewer.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("viewer transport not closed")
	}
}

func TestWebSocketMsgpackBroadcast(t *testing.T) {
	srv, hub := newTestServer(t, config.RunConfig{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stream?streamId=ws-1&codec=msgpack"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers("ws-1") == 1 }, 2*time.Second, 10*time.Millisecond)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clients", nil))
	require.Contains(t, w.Body.String(), `"transport":"websocket"`)

	post, err := http.Post(ts.URL+"/broadcast/ws-1", "application/json", bytes.NewBufferString(`{"note":"hi"}`))
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusAccepted, post.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, kind)
	m, err := stream.MsgpackCodec{}.Decode(data)
	require.NoError(t, err)
	require.Equal(t, stream.EventData, m.Event)
	require.Equal(t, "ws-1", m.StreamID)
}

func TestWebSocketRequiresStreamID(t *testing.T) {
	srv, _ := newTestServer(t, config.RunConfig{})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}
