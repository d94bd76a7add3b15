package server

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/loganszeto/respkv/internal/persistence"
	"github.com/loganszeto/respkv/internal/protocol"
	"github.com/loganszeto/respkv/internal/stats"
	"github.com/loganszeto/respkv/internal/store"
)

// Params is the startup configuration visible to commands. It never
// changes while the server runs.
type Params struct {
	Dir        string
	DBFilename string
}

const (
	errUnknownCommand = "ERR unknown command"
	errSyntax         = "ERR syntax error"
	errNotInteger     = "ERR value is not an integer or out of range"
)

// Dispatcher executes decoded commands. It holds no per-request state; the
// store is the only thing a command mutates.
type Dispatcher struct {
	st     store.Store
	snaps  *persistence.SnapshotReader
	params Params
	stats  *stats.Stats
	logger hclog.Logger
}

func NewDispatcher(st store.Store, snaps *persistence.SnapshotReader, params Params, metrics *stats.Stats, logger hclog.Logger) *Dispatcher {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if snaps == nil {
		snaps = persistence.NewSnapshotReader(nil)
	}
	if metrics == nil {
		metrics = stats.New()
	}
	return &Dispatcher{
		st:     st,
		snaps:  snaps,
		params: params,
		stats:  metrics,
		logger: logger,
	}
}

// Handle runs the first request in chunk and returns the encoded reply. A
// chunk holding no request yields nil. Malformed input becomes an error
// reply instead of failing the connection.
func (d *Dispatcher) Handle(chunk []byte) []byte {
	cmd, err := protocol.ParseCommand(chunk)
	if err != nil {
		d.stats.RecordError(stats.ErrKindProtocol)
		d.logger.Debug("protocol error", "error", err)
		var perr *protocol.ProtocolError
		if errors.As(err, &perr) {
			return protocol.Encode(protocol.ErrorString("ERR protocol error: " + perr.Reason))
		}
		return protocol.Encode(protocol.ErrorString("ERR " + err.Error()))
	}
	if len(cmd) == 0 {
		return nil
	}
	return protocol.Encode(d.Dispatch(cmd))
}

func (d *Dispatcher) Dispatch(cmd protocol.Command) protocol.Value {
	name := cmd.Name()
	d.stats.RecordCommand(name)

	switch name {
	case "PING":
		return protocol.SimpleString("PONG")
	case "ECHO":
		if len(cmd) != 2 {
			return d.wrongArgs(cmd)
		}
		return protocol.SimpleString(cmd[1])
	case "SET":
		return d.set(cmd)
	case "GET":
		if len(cmd) != 2 {
			return d.wrongArgs(cmd)
		}
		val, ok := d.st.Get(cmd[1])
		d.stats.RecordGet(ok)
		if !ok {
			return protocol.NullBulkString()
		}
		return protocol.BulkString(val)
	case "CONFIG":
		return d.config(cmd)
	case "KEYS":
		return d.keys(cmd)
	default:
		d.stats.RecordError(stats.ErrKindUnknownCommand)
		return protocol.ErrorString(errUnknownCommand)
	}
}

// set handles SET key value [PX ms | EX s]. The expiry pair is read from
// fixed positions 3 and 4.
func (d *Dispatcher) set(cmd protocol.Command) protocol.Value {
	switch {
	case len(cmd) < 3:
		return d.wrongArgs(cmd)
	case len(cmd) == 3:
		d.st.Set(cmd[1], cmd[2])
		return protocol.SimpleString("OK")
	case len(cmd) == 5:
		n, err := strconv.ParseInt(cmd[4], 10, 64)
		if err != nil {
			return d.argError(errNotInteger)
		}
		var ttlMs int64
		switch strings.ToUpper(cmd[3]) {
		case "PX":
			ttlMs = n
		case "EX":
			if n > math.MaxInt64/1000 || n < math.MinInt64/1000 {
				return d.argError(errNotInteger)
			}
			ttlMs = n * 1000
		default:
			return d.argError(errSyntax)
		}
		d.st.SetWithTTL(cmd[1], cmd[2], ttlMs)
		return protocol.SimpleString("OK")
	default:
		return d.argError(errSyntax)
	}
}

// config answers CONFIG GET for the dir and dbfilename parameters. Any
// other parameter matches nothing.
func (d *Dispatcher) config(cmd protocol.Command) protocol.Value {
	if len(cmd) != 3 {
		return d.wrongArgs(cmd)
	}
	if !strings.EqualFold(cmd[1], "GET") {
		return d.argError("ERR unknown subcommand '" + cmd[1] + "'")
	}
	switch param := strings.ToLower(cmd[2]); param {
	case "dir":
		return protocol.BulkStrings([]string{param, d.params.Dir})
	case "dbfilename":
		return protocol.BulkStrings([]string{param, d.params.DBFilename})
	default:
		return protocol.Array()
	}
}

// keys lists keys from the snapshot file, not the live store. The pattern
// is ignored.
func (d *Dispatcher) keys(cmd protocol.Command) protocol.Value {
	if len(cmd) != 2 {
		return d.wrongArgs(cmd)
	}
	keys, found, err := d.snaps.ListKeys(d.params.Dir, d.params.DBFilename)
	if err != nil {
		d.stats.RecordError(stats.ErrKindSnapshot)
		d.logger.Warn("snapshot read failed",
			"path", persistence.SnapshotPath(d.params.Dir, d.params.DBFilename),
			"error", err)
		return protocol.ErrorString("ERR " + err.Error())
	}
	if !found {
		return protocol.NullBulkString()
	}
	return protocol.BulkStrings(keys)
}

func (d *Dispatcher) wrongArgs(cmd protocol.Command) protocol.Value {
	return d.argError("ERR wrong number of arguments for '" + strings.ToLower(cmd[0]) + "' command")
}

func (d *Dispatcher) argError(msg string) protocol.Value {
	d.stats.RecordError(stats.ErrKindArguments)
	return protocol.ErrorString(msg)
}
