package server

import (
	"errors"
	"io"
	"net"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/loganszeto/respkv/internal/protocol"
	"github.com/loganszeto/respkv/internal/stats"
)

// MaxChunkSize bounds one chunk. Each chunk read from the socket is
// treated as exactly one request: a request split across reads, or several
// requests sent in one write, are not reassembled.
const MaxChunkSize = 64 * 1024

var rateLimitedReply = protocol.Encode(protocol.ErrorString("ERR rate limit exceeded"))

func (s *Server) handleConn(c net.Conn) {
	defer c.Close()

	log := s.logger.With("conn", ulid.Make().String(), "remote", c.RemoteAddr().String())
	defer func() {
		if r := recover(); r != nil {
			log.Error("connection handler panicked", "panic", r)
		}
	}()
	log.Debug("connection opened")
	s.stats.ConnOpened()
	defer s.stats.ConnClosed()

	var limiter *rate.Limiter
	if s.rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.rateLimit), s.rateLimit)
	}

	buf := make([]byte, MaxChunkSize)
	for {
		n, err := c.Read(buf)
		if n > 0 {
			var reply []byte
			if limiter != nil && !limiter.Allow() {
				s.stats.RecordError(stats.ErrKindRateLimit)
				reply = rateLimitedReply
			} else {
				reply = s.dispatcher.Handle(buf[:n])
			}
			if len(reply) > 0 {
				if _, werr := c.Write(reply); werr != nil {
					log.Debug("write failed", "error", werr)
					return
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Debug("read failed", "error", err)
			}
			log.Debug("connection closed")
			return
		}
	}
}
