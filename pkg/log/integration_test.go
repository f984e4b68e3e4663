package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/YuminosukeSato/connectome/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoggerInterface tests the TestLogger implementation of Logger
func TestLoggerInterface(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationLoad)
	testLogger.Warn("warning message", DegenerateKey, 3)
	testLogger.Error("error message", fmt.Errorf("test error"), ErrorTypeKey, "IOError")

	require.NotEmpty(t, buffer.String())
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		assert.True(t, testLogger.ContainsMessage(msg), "missing %q", msg)
	}

	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0)) // JSON numbers are float64
	assert.True(t, testLogger.ContainsField(ErrorKey, "test error"))
	assert.True(t, testLogger.ContainsField(ErrorTypeKey, "IOError"))
}

// TestLoggerWith tests the With method for context-aware logging
func TestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(
		ModelNameKey, "lasso",
		ComponentKey, "encodingmodel",
	)
	contextLogger.Info("contextual message", OperationKey, OperationFit)

	assert.True(t, testLogger.ContainsField(ModelNameKey, "lasso"))
	assert.True(t, testLogger.ContainsField(ComponentKey, "encodingmodel"))
	assert.True(t, testLogger.ContainsField(OperationKey, OperationFit))
}

// TestLoggerEnabled tests the Enabled method
func TestLoggerEnabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	assert.True(t, testLogger.Enabled(ctx, LevelInfo))
	assert.True(t, testLogger.Enabled(ctx, LevelError))
	assert.False(t, testLogger.Enabled(ctx, LevelDebug))

	testLogger.Debug("this should not appear")
	testLogger.Info("this should appear")

	assert.False(t, testLogger.ContainsMessage("this should not appear"))
	assert.True(t, testLogger.ContainsMessage("this should appear"))
}

func TestTestLoggerConcurrentWrites(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)
	worker := testLogger.With(WorkersKey, 8)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			worker.Debug("chunk fitted", "chunk", id)
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 8)
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo)

	logger.Debug("hidden")
	logger.With(ComponentKey, "encodingmodel").Info("fit completed",
		SamplesKey, 10,
		VerticesKey, 5,
	)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "fit completed", entry["message"])
	assert.Equal(t, "encodingmodel", entry[ComponentKey])
	assert.Equal(t, 10.0, entry[SamplesKey])
	assert.Contains(t, entry, "time")

	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), LevelWarn))
}

func TestZerologLoggerErrorDetails(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug)

	err := errors.NewShapeError("LoadResponses", []int{32492}, []int{10}, "right hemisphere")
	logger.Error("load failed", err, OperationKey, OperationLoad)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, err.Error(), entry[ErrorKey])
	assert.Equal(t, OperationLoad, entry[OperationKey])
	assert.NotEmpty(t, entry[StacktraceKey])

	detail, ok := entry["error.detail"].(map[string]interface{})
	require.True(t, ok, "structured error detail expected")
	assert.Equal(t, "ShapeError", detail["type"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				var valErr *errors.ValidationError
				assert.True(t, errors.As(err, &valErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetLogger(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)

	testLogger, _ := NewTestLogger(LevelDebug)
	SetLogger(testLogger)

	GetLogger().Info("via global")
	assert.True(t, testLogger.ContainsMessage("via global"))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}
