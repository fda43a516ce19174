package tlog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutputRoutesToBothSinksAndTagsComponent(t *testing.T) {
	var structured, human bytes.Buffer
	require.NoError(t, SetOutput(&structured, &human))

	logger := ForComponent("test-component")
	logger.Infof("hello %s", "world")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(structured.Bytes()), &rec))
	assert.Equal(t, "hello world", rec["msg"])
	assert.Equal(t, "test-component", rec["component"])

	assert.Contains(t, human.String(), "hello world")
	assert.Contains(t, human.String(), "test-component")
}

func TestSetOutputRejectsNilWriters(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, SetOutput(nil, &buf))
	assert.Error(t, SetOutput(&buf, nil))
}

func TestForComponentBeforeAnyOutputConfiguredIsDiscard(t *testing.T) {
	loggerMu.Lock()
	savedStructured, savedHuman := structuredLogger, humanReadableLogger
	structuredLogger, humanReadableLogger = nil, nil
	loggerMu.Unlock()
	defer func() {
		loggerMu.Lock()
		structuredLogger, humanReadableLogger = savedStructured, savedHuman
		loggerMu.Unlock()
	}()

	logger := ForComponent("anything")
	assert.Equal(t, Discard, logger)
	assert.NotPanics(t, func() { logger.Errorf("should be dropped silently") })
}

func TestSlogAdapterFormatsAllLevels(t *testing.T) {
	var structured, human bytes.Buffer
	require.NoError(t, SetOutput(&structured, &human))
	logger := ForComponent("levels")

	logger.Debugf("d%d", 1)
	logger.Infof("i%d", 2)
	logger.Warnf("w%d", 3)
	logger.Errorf("e%d", 4)

	out := human.String()
	assert.Contains(t, out, "i2")
	assert.Contains(t, out, "w3")
	assert.Contains(t, out, "e4")
}

func TestNewFileLoggerWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "stage.log")

	logger, closeFn, err := NewFileLogger(path, "stage", RotationDaily, 1024*1024, nil)
	require.NoError(t, err)
	logger.Infof("pipeline started")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "pipeline started"))
	assert.True(t, strings.Contains(string(data), `"component":"stage"`))
}

func TestDiscardLoggerNeverPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		Discard.Debugf("x")
		Discard.Infof("x")
		Discard.Warnf("x")
		Discard.Errorf("x")
	})
}
