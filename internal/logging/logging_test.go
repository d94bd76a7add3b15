package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, hclog.Debug, ParseLevel("debug"))
	assert.Equal(t, hclog.Warn, ParseLevel(" WARN "))
	assert.Equal(t, hclog.Info, ParseLevel(""))
	assert.Equal(t, hclog.Info, ParseLevel("loud"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("respkv", Options{Level: "info", Format: "json", Output: &buf})

	log.Debug("hidden")
	log.Named("server").Info("listening", "addr", "127.0.0.1:6379")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "listening", line["@message"])
	assert.Equal(t, "respkv.server", line["@module"])
	assert.Equal(t, "127.0.0.1:6379", line["addr"])
}

func TestNew_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New("respkv", Options{Level: "error", Output: &buf})

	log.Info("dropped")
	assert.Empty(t, buf.String())

	log.SetLevel(hclog.Info)
	log.Info("kept")
	assert.Contains(t, buf.String(), "kept")
}
