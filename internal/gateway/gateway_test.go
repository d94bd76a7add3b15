package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loganszeto/respkv/internal/protocol"
	"github.com/loganszeto/respkv/internal/server"
	"github.com/loganszeto/respkv/internal/stats"
	"github.com/loganszeto/respkv/internal/store"
)

func newTestGateway(t *testing.T) (*httptest.Server, *stats.Stats) {
	t.Helper()
	metrics := stats.New()
	st := store.NewStore(store.Options{})
	d := server.NewDispatcher(st, nil, server.Params{Dir: t.TempDir(), DBFilename: "dump.rdb"}, metrics, nil)
	srv := httptest.NewServer(New(d, metrics, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, metrics
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msgType int, payload []byte) string {
	t.Helper()
	require.NoError(t, conn.WriteMessage(msgType, payload))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	gotType, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, gotType)
	return string(reply)
}

func TestGateway_Commands(t *testing.T) {
	srv, _ := newTestGateway(t)
	conn := dialWS(t, srv)

	assert.Equal(t, "+PONG\r\n", roundTrip(t, conn, websocket.TextMessage, []byte("*1\r\n$4\r\nPING\r\n")))
	assert.Equal(t, "+OK\r\n", roundTrip(t, conn, websocket.BinaryMessage, protocol.EncodeCommand("SET", "k", "v")))
	assert.Equal(t, "$1\r\nv\r\n", roundTrip(t, conn, websocket.BinaryMessage, protocol.EncodeCommand("GET", "k")))
}

func TestGateway_ProtocolErrorKeepsConnection(t *testing.T) {
	srv, _ := newTestGateway(t)
	conn := dialWS(t, srv)

	assert.Equal(t, "-ERR protocol error: unknown type tag\r\n", roundTrip(t, conn, websocket.TextMessage, []byte("?\r\n")))
	assert.Equal(t, "+PONG\r\n", roundTrip(t, conn, websocket.TextMessage, protocol.EncodeCommand("PING")))
}

func TestGateway_OversizedMessageClosesConnection(t *testing.T) {
	srv, _ := newTestGateway(t)
	conn := dialWS(t, srv)

	big := protocol.EncodeCommand("ECHO", strings.Repeat("x", server.MaxChunkSize))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, big))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	// The peer may see the 1009 close frame or a reset, depending on timing.
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestGateway_Healthz(t *testing.T) {
	srv, _ := newTestGateway(t)

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestGateway_Metrics(t *testing.T) {
	srv, metrics := newTestGateway(t)
	conn := dialWS(t, srv)
	roundTrip(t, conn, websocket.TextMessage, protocol.EncodeCommand("PING"))

	assert.Equal(t, int64(1), metrics.Snapshot()["respkv_connections_active"])

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `respkv_commands_total{command="PING"} 1`)
}
