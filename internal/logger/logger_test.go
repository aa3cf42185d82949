package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_InvalidLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewLogger_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "media-compressor.log")
	log, err := NewLogger(LoggerConfig{
		Level:    "debug",
		FilePath: path,
		MaxSize:  1,
	})
	require.NoError(t, err)

	run := WithRun(log, "run-1", 7)
	WithOperation(WithURI(run, "file:///photos/a.jpg"), "compress").Info("compressing media")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "compressing media", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, float64(7), entry["generation"])
	assert.Equal(t, "file:///photos/a.jpg", entry["uri"])
	assert.Equal(t, "compress", entry["operation"])
	assert.Contains(t, entry, "timestamp")
}

func TestDiscard(t *testing.T) {
	log := Discard()
	assert.Equal(t, logrus.PanicLevel, log.GetLevel())
	WithURI(log, "file:///x.jpg").Error("not written")
}
