package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goclimate/pkg/config"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "info", Format: "json"}, "1.2.3", "climate")

	logger.Info("report sent", "code", 200)
	logger.Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "report sent", rec["msg"])
	assert.Equal(t, "climate", rec["app"])
	assert.Equal(t, "1.2.3", rec["version"])
	assert.Equal(t, float64(200), rec["code"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_TextLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "debug", Format: "text"}, "dev", "climate")

	logger.Debug("sensor read", "temperature", 24.5)

	out := buf.String()
	assert.Contains(t, out, "sensor read")
	assert.Contains(t, out, "temperature=24.5")
	assert.Contains(t, out, "app=climate")
	assert.NotContains(t, out, "\x1b[")
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "loud", Format: "text"}, "dev", "climate")

	logger.Debug("hidden")
	logger.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
