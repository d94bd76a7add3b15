package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Command
	}{
		{
			name:  "ping",
			input: "*1\r\n$4\r\nPING\r\n",
			want:  Command{"PING"},
		},
		{
			name:  "echo",
			input: "*2\r\n$4\r\nECHO\r\n$5\r\nhello\r\n",
			want:  Command{"ECHO", "hello"},
		},
		{
			name:  "set with px",
			input: "*5\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n$2\r\nPX\r\n$3\r\n100\r\n",
			want:  Command{"SET", "k", "v", "PX", "100"},
		},
		{
			name:  "config get dir",
			input: "*3\r\n$6\r\nCONFIG\r\n$3\r\nGET\r\n$3\r\ndir\r\n",
			want:  Command{"CONFIG", "GET", "dir"},
		},
		{
			name:  "missing final terminator",
			input: "*1\r\n$4\r\nPING",
			want:  Command{"PING"},
		},
		{
			name:  "payload containing crlf",
			input: "*2\r\n$4\r\nECHO\r\n$4\r\na\r\nb\r\n",
			want:  Command{"ECHO", "a\r\nb"},
		},
		{
			name:  "empty bulk string",
			input: "*2\r\n$4\r\nECHO\r\n$0\r\n\r\n",
			want:  Command{"ECHO", ""},
		},
		{
			name:  "top-level bulk string",
			input: "$4\r\nPING\r\n",
			want:  Command{"PING"},
		},
		{
			name:  "empty array",
			input: "*0\r\n",
			want:  Command{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommand_NoInput(t *testing.T) {
	for _, input := range []string{"", "\r\n", "\r\n\r\n", "$-1\r\n"} {
		cmd, err := ParseCommand([]byte(input))
		require.NoError(t, err, "input %q", input)
		assert.Nil(t, cmd, "input %q", input)
	}
}

func TestParseCommand_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{"unknown tag", "PING\r\n", "unknown type tag"},
		{"simple string tag", "+PING\r\n", "unknown type tag"},
		{"unknown tag inside array", "*1\r\n:1\r\n", "unknown type tag"},
		{"bad array length", "*x\r\n", "invalid array length"},
		{"bad bulk length", "*1\r\n$y\r\nPING\r\n", "invalid bulk length"},
		{"short payload", "*1\r\n$10\r\nPING\r\n", "bulk length mismatch"},
		{"long payload", "*1\r\n$2\r\nPING\r\n", "bulk length mismatch"},
		{"truncated array", "*2\r\n$4\r\nECHO\r\n", "unexpected end of array"},
		{"null element", "*2\r\n$3\r\nGET\r\n$-1\r\n", "null bulk string in command"},
		{"nested array", "*1\r\n*1\r\n$4\r\nPING\r\n", "expected bulk string in command"},
		{"empty token mid input", "\r\n*1\r\n$4\r\nPING\r\n", "unknown type tag"},
		{"huge array length", "*9223372036854775807\r\n", "unexpected end of array"},
		{"huge array length with element", "*9223372036854775807\r\n$4\r\nPING\r\n", "unexpected end of array"},
		{"huge bulk length", "*1\r\n$9223372036854775807\r\nx\r\n", "bulk length mismatch"},
		{"bulk length past input", "*1\r\n$9223372036854775807\r\nPING\r\n", "bulk length mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommand([]byte(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrProtocol))

			var perr *ProtocolError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.reason, perr.Reason)
		})
	}
}

func TestDecode_ConsumesOnlyFirstValue(t *testing.T) {
	first := "*1\r\n$4\r\nPING\r\n"
	input := first + "*2\r\n$4\r\nECHO\r\n$2\r\nhi\r\n"

	v, n, err := Decode([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, len(first), n)
	assert.Equal(t, Array(BulkString("PING")), v)
}

func TestDecode_NullBulk(t *testing.T) {
	v, n, err := Decode([]byte("$-1\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, NullBulkString(), v)
}

func TestCommandAccessors(t *testing.T) {
	cmd := Command{"set", "k", "v"}
	assert.Equal(t, "SET", cmd.Name())
	assert.Equal(t, "k", cmd.Arg(1))
	assert.Equal(t, "", cmd.Arg(3))
	assert.Equal(t, "", Command{}.Name())
}
