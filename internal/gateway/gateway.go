// Package gateway exposes the command dispatcher over WebSocket, next to
// health and metrics endpoints.
package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/oklog/ulid/v2"

	"github.com/loganszeto/respkv/internal/server"
	"github.com/loganszeto/respkv/internal/stats"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type Gateway struct {
	dispatcher *server.Dispatcher
	stats      *stats.Stats
	logger     hclog.Logger
}

func New(d *server.Dispatcher, st *stats.Stats, logger hclog.Logger) *Gateway {
	if st == nil {
		st = stats.New()
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Gateway{dispatcher: d, stats: st, logger: logger}
}

// Handler routes /ws, /healthz and /metrics.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", g.handleWS)
	mux.Handle("/metrics", g.stats.Handler())
	return g.withLogging(mux)
}

// NewHTTPServer wraps Handler in an http.Server listening on addr.
func (g *Gateway) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (g *Gateway) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		g.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// handleWS treats every text or binary message as one request chunk.
// Messages that hold no request get no reply. A message larger than
// server.MaxChunkSize closes the connection.
func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(server.MaxChunkSize)

	log := g.logger.With("conn", ulid.Make().String(), "remote", r.RemoteAddr)
	g.stats.ConnOpened()
	defer g.stats.ConnClosed()

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("read failed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		reply := g.dispatcher.Handle(payload)
		if len(reply) == 0 {
			continue
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, reply); err != nil {
			log.Debug("write failed", "error", err)
			return
		}
	}
}
