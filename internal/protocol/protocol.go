// Package protocol implements the RESP subset spoken by respkv: requests are
// arrays of bulk strings, replies are simple strings, bulk strings (possibly
// null), arrays and errors.
package protocol

import "strings"

type Kind int

const (
	KindSimpleString Kind = iota + 1
	KindBulkString
	KindArray
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindSimpleString:
		return "simple-string"
	case KindBulkString:
		return "bulk-string"
	case KindArray:
		return "array"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Value is a decoded request element or a reply. Null is only meaningful
// for bulk strings.
type Value struct {
	Kind  Kind
	Str   string
	Null  bool
	Items []Value
}

func SimpleString(s string) Value {
	return Value{Kind: KindSimpleString, Str: s}
}

func BulkString(s string) Value {
	return Value{Kind: KindBulkString, Str: s}
}

func NullBulkString() Value {
	return Value{Kind: KindBulkString, Null: true}
}

func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Kind: KindArray, Items: items}
}

func ErrorString(msg string) Value {
	return Value{Kind: KindError, Str: msg}
}

// BulkStrings wraps each string as a bulk string inside one array.
func BulkStrings(items []string) Value {
	out := make([]Value, 0, len(items))
	for _, s := range items {
		out = append(out, BulkString(s))
	}
	return Array(out...)
}

// Command is a request flattened to its arguments. Index 0 is the command
// name.
type Command []string

// Name returns the upper-cased command name, or "" for an empty command.
func (c Command) Name() string {
	if len(c) == 0 {
		return ""
	}
	return strings.ToUpper(c[0])
}

// Arg returns the i-th argument or "" when it is missing.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c) {
		return ""
	}
	return c[i]
}
