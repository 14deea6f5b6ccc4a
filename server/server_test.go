package server_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/pdfagent/server"
)

type fakeSession struct {
	mu         sync.Mutex
	queries    []string
	resets     int
	onToolCall func(name, input string)
}

func (f *fakeSession) Chat(_ context.Context, query string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if query == "fail" {
		return "", errors.New("model unavailable")
	}
	f.queries = append(f.queries, query)
	f.onToolCall("report_query", query)
	return "answer to " + query, nil
}

func (f *fakeSession) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

func newTestServer(t *testing.T) (*httptest.Server, *[]*fakeSession) {
	t.Helper()
	var sessions []*fakeSession
	var mu sync.Mutex

	s, err := server.NewWSServer(server.Config{}, func(onToolCall func(name, input string)) (server.Session, error) {
		mu.Lock()
		defer mu.Unlock()
		fs := &fakeSession{onToolCall: onToolCall}
		sessions = append(sessions, fs)
		return fs, nil
	})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, &sessions
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var hello server.Message
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, server.TypeStatus, hello.Type)
	assert.Equal(t, "connected", hello.Content)
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg server.Message) server.Message {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
	var reply server.Message
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestNewWSServerRequiresFactory(t *testing.T) {
	_, err := server.NewWSServer(server.Config{}, nil)
	assert.Error(t, err)
}

func TestQueryRoundTrip(t *testing.T) {
	ts, sessions := newTestServer(t)
	conn := dial(t, ts)

	reply := roundTrip(t, conn, server.Message{Type: server.TypeQuery, Content: "What was revenue?"})
	assert.Equal(t, server.TypeResponse, reply.Type)
	assert.Equal(t, "answer to What was revenue?", reply.Content)

	reply = roundTrip(t, conn, server.Message{Type: server.TypeQuery, Content: "fail"})
	assert.Equal(t, server.TypeError, reply.Type)
	assert.Contains(t, reply.Content, "model unavailable")

	reply = roundTrip(t, conn, server.Message{Type: server.TypeQuery, Content: "  "})
	assert.Equal(t, server.TypeError, reply.Type)

	reply = roundTrip(t, conn, server.Message{Type: server.TypeReset})
	assert.Equal(t, server.TypeStatus, reply.Type)

	reply = roundTrip(t, conn, server.Message{Type: "upload"})
	assert.Equal(t, server.TypeError, reply.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, server.TypeError, reply.Type)

	require.Len(t, *sessions, 1)
	assert.Equal(t, []string{"What was revenue?"}, (*sessions)[0].queries)
	assert.Equal(t, 1, (*sessions)[0].resets)
}

func TestSessionsAreIsolated(t *testing.T) {
	ts, sessions := newTestServer(t)
	first := dial(t, ts)
	second := dial(t, ts)

	roundTrip(t, first, server.Message{Content: "one"})
	roundTrip(t, second, server.Message{Content: "two"})

	require.Len(t, *sessions, 2)
	assert.Equal(t, []string{"one"}, (*sessions)[0].queries)
	assert.Equal(t, []string{"two"}, (*sessions)[1].queries)
}

func TestHealthAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dial(t, ts)
	roundTrip(t, conn, server.Message{Content: "hello"})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()

	text := string(body)
	assert.Contains(t, text, `pdfagent_queries_total{status="ok"} 1`)
	assert.Contains(t, text, `pdfagent_tool_invocations_total{tool="report_query"} 1`)
	assert.Contains(t, text, "pdfagent_query_duration_seconds_count 1")
	assert.Contains(t, text, "pdfagent_active_sessions 1")
}
