package protocol

import (
	"bytes"
	"errors"
	"strconv"
)

var ErrProtocol = errors.New("protocol error")

// ProtocolError reports malformed or unrecognised wire input. It matches
// ErrProtocol under errors.Is.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

func protoErr(reason string) error {
	return &ProtocolError{Reason: reason}
}

var crlf = []byte("\r\n")

type decoder struct {
	buf []byte
	pos int
}

// Decode reads the first value from data and returns it together with the
// number of bytes consumed. Empty input, or input made only of line
// terminators, yields n == 0 and a nil error. Bytes after the first value
// are left unread.
//
// Bulk payloads are read by their declared length and must be followed by
// CRLF or end of input, so payloads may contain CRLF themselves.
func Decode(data []byte) (Value, int, error) {
	d := &decoder{buf: data}
	v, ok, err := d.value()
	if err != nil {
		return Value{}, 0, err
	}
	if !ok {
		return Value{}, 0, nil
	}
	return v, d.pos, nil
}

// ParseCommand decodes one request and flattens it into its arguments. A
// top-level bulk string becomes a single-argument command. A nil command
// with a nil error means the input held no request.
func ParseCommand(data []byte) (Command, error) {
	v, n, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	switch v.Kind {
	case KindBulkString:
		if v.Null {
			return nil, nil
		}
		return Command{v.Str}, nil
	case KindArray:
		cmd := make(Command, 0, len(v.Items))
		for _, item := range v.Items {
			if item.Kind != KindBulkString {
				return nil, protoErr("expected bulk string in command")
			}
			if item.Null {
				return nil, protoErr("null bulk string in command")
			}
			cmd = append(cmd, item.Str)
		}
		return cmd, nil
	default:
		return nil, protoErr("unexpected " + v.Kind.String())
	}
}

// line returns the next CRLF-terminated token. The final token may lack a
// terminator. ok is false once the input is exhausted.
func (d *decoder) line() (string, bool) {
	if d.pos >= len(d.buf) {
		return "", false
	}
	rest := d.buf[d.pos:]
	i := bytes.Index(rest, crlf)
	if i < 0 {
		d.pos = len(d.buf)
		return string(rest), true
	}
	d.pos += i + len(crlf)
	return string(rest[:i]), true
}

func (d *decoder) value() (Value, bool, error) {
	tok, ok := d.line()
	if !ok {
		return Value{}, false, nil
	}
	if tok == "" {
		// Trailing empty segments end the input; an empty token elsewhere
		// has no type tag.
		if len(bytes.Trim(d.buf[d.pos:], "\r\n")) == 0 {
			d.pos = len(d.buf)
			return Value{}, false, nil
		}
		return Value{}, false, protoErr("unknown type tag")
	}

	switch tok[0] {
	case '*':
		n, err := strconv.Atoi(tok[1:])
		if err != nil || n < -1 {
			return Value{}, false, protoErr("invalid array length")
		}
		// Every element takes at least one byte, so the remaining input
		// bounds the capacity whatever length the header claims.
		items := make([]Value, 0, min(max(n, 0), len(d.buf)-d.pos))
		for i := 0; i < n; i++ {
			item, ok, err := d.value()
			if err != nil {
				return Value{}, false, err
			}
			if !ok {
				return Value{}, false, protoErr("unexpected end of array")
			}
			items = append(items, item)
		}
		return Array(items...), true, nil
	case '$':
		n, err := strconv.Atoi(tok[1:])
		if err != nil || n < -1 {
			return Value{}, false, protoErr("invalid bulk length")
		}
		if n == -1 {
			return NullBulkString(), true, nil
		}
		payload, err := d.bulk(n)
		if err != nil {
			return Value{}, false, err
		}
		return BulkString(payload), true, nil
	default:
		return Value{}, false, protoErr("unknown type tag")
	}
}

func (d *decoder) bulk(n int) (string, error) {
	if n > len(d.buf)-d.pos {
		return "", protoErr("bulk length mismatch")
	}
	end := d.pos + n
	payload := string(d.buf[d.pos:end])
	rest := d.buf[end:]
	switch {
	case len(rest) == 0:
		d.pos = end
	case bytes.HasPrefix(rest, crlf):
		d.pos = end + len(crlf)
	default:
		return "", protoErr("bulk length mismatch")
	}
	return payload, nil
}
