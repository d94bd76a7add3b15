package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var ErrInvalidReply = errors.New("invalid reply")

const (
	// MaxBulkLen bounds a bulk reply read by ReadReply.
	MaxBulkLen = 512 * 1024 * 1024
	// maxPrealloc caps the slice allocated up front for an array reply.
	maxPrealloc = 1024
)

var lineBreaks = strings.NewReplacer("\r", " ", "\n", " ")

// Encode renders v in wire form. Values with an unknown kind are encoded
// as an error reply. CR and LF inside simple strings and errors become
// spaces so a reply is always one line.
func Encode(v Value) []byte {
	var buf bytes.Buffer
	encodeTo(&buf, v)
	return buf.Bytes()
}

func encodeTo(buf *bytes.Buffer, v Value) {
	switch v.Kind {
	case KindSimpleString:
		buf.WriteByte('+')
		buf.WriteString(lineBreaks.Replace(v.Str))
		buf.Write(crlf)
	case KindBulkString:
		if v.Null {
			buf.WriteString("$-1\r\n")
			return
		}
		buf.WriteByte('$')
		buf.WriteString(strconv.Itoa(len(v.Str)))
		buf.Write(crlf)
		buf.WriteString(v.Str)
		buf.Write(crlf)
	case KindArray:
		buf.WriteByte('*')
		buf.WriteString(strconv.Itoa(len(v.Items)))
		buf.Write(crlf)
		for _, item := range v.Items {
			encodeTo(buf, item)
		}
	case KindError:
		buf.WriteByte('-')
		buf.WriteString(lineBreaks.Replace(v.Str))
		buf.Write(crlf)
	default:
		buf.WriteString("-ERR invalid reply\r\n")
	}
}

// EncodeCommand renders args as a request array of bulk strings.
func EncodeCommand(args ...string) []byte {
	return Encode(BulkStrings(args))
}

// ReadReply reads one reply from r. It is the client-side counterpart of
// Encode and also understands integer replies, which are returned as simple
// strings.
func ReadReply(r *bufio.Reader) (Value, error) {
	line, err := readLine(r)
	if err != nil {
		return Value{}, err
	}
	if line == "" {
		return Value{}, ErrInvalidReply
	}
	switch line[0] {
	case '+', ':':
		return SimpleString(line[1:]), nil
	case '-':
		return ErrorString(line[1:]), nil
	case '$':
		n, err := strconv.Atoi(line[1:])
		if err != nil || n < -1 || n > MaxBulkLen {
			return Value{}, ErrInvalidReply
		}
		if n == -1 {
			return NullBulkString(), nil
		}
		payload := make([]byte, n+2)
		if _, err := io.ReadFull(r, payload); err != nil {
			return Value{}, err
		}
		if !bytes.HasSuffix(payload, crlf) {
			return Value{}, ErrInvalidReply
		}
		return BulkString(string(payload[:n])), nil
	case '*':
		n, err := strconv.Atoi(line[1:])
		if err != nil || n < -1 {
			return Value{}, ErrInvalidReply
		}
		items := make([]Value, 0, min(max(n, 0), maxPrealloc))
		for i := 0; i < n; i++ {
			item, err := ReadReply(r)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return Value{}, ErrInvalidReply
				}
				return Value{}, err
			}
			items = append(items, item)
		}
		return Array(items...), nil
	default:
		return Value{}, fmt.Errorf("%w: type tag %q", ErrInvalidReply, line[0])
	}
}

// Format renders a reply the way redis-cli prints it.
func Format(v Value) string {
	var sb strings.Builder
	format(&sb, v, "")
	return strings.TrimSuffix(sb.String(), "\n")
}

func format(sb *strings.Builder, v Value, indent string) {
	switch v.Kind {
	case KindSimpleString:
		sb.WriteString(v.Str + "\n")
	case KindBulkString:
		if v.Null {
			sb.WriteString("(nil)\n")
			return
		}
		sb.WriteString(strconv.Quote(v.Str) + "\n")
	case KindError:
		sb.WriteString("(error) " + v.Str + "\n")
	case KindArray:
		if len(v.Items) == 0 {
			sb.WriteString("(empty array)\n")
			return
		}
		for i, item := range v.Items {
			prefix := strconv.Itoa(i+1) + ") "
			if i > 0 {
				sb.WriteString(indent)
			}
			sb.WriteString(prefix)
			format(sb, item, indent+strings.Repeat(" ", len(prefix)))
		}
	default:
		sb.WriteString("(unknown)\n")
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}
