package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "/var/log/servicereport/servicereport.log", cfg.FilePath)
	assert.Equal(t, 10, cfg.MaxSizeMB)
	assert.Equal(t, 5, cfg.MaxFiles)
	assert.Equal(t, slog.LevelWarn, cfg.ConsoleLevel)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"recommendation", LevelRecommendation},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestVerbosityLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, VerbosityLevel(0, false))
	assert.Equal(t, LevelRecommendation, VerbosityLevel(1, false))
	assert.Equal(t, slog.LevelInfo, VerbosityLevel(2, false))
	assert.Equal(t, slog.LevelDebug, VerbosityLevel(5, false))
	assert.Greater(t, VerbosityLevel(3, true), slog.LevelError)
}

func TestSetup_FileAndConsole(t *testing.T) {
	// Given: a file logger at debug and a console at recommendation level
	path := filepath.Join(t.TempDir(), "logs", "servicereport.log")
	var console bytes.Buffer
	logger, cleanup, err := Setup(Config{
		Level:        "debug",
		FilePath:     path,
		Console:      &console,
		ConsoleLevel: LevelRecommendation,
	})
	require.NoError(t, err)

	// When: logging at several levels
	logger.Debug("probing host")
	Recommend(logger, "Start the service: systemctl start irqbalance")
	cleanup()

	// Then: the file has both records as JSON
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "RECOMMENDATION", rec["level"])

	// And: the console only shows the recommendation, without a timestamp
	out := console.String()
	assert.Contains(t, out, "level=RECOMMENDATION")
	assert.NotContains(t, out, "probing host")
	assert.NotContains(t, out, "time=")
}

func TestSetup_UnwritableFileFallsBackToConsole(t *testing.T) {
	// Given: a log path under a regular file
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	var console bytes.Buffer

	// When: setting up
	logger, cleanup, err := Setup(Config{
		FilePath:     filepath.Join(blocker, "servicereport.log"),
		Console:      &console,
		ConsoleLevel: slog.LevelWarn,
	})
	defer cleanup()

	// Then: an error is reported but the console logger works
	require.Error(t, err)
	require.NotNil(t, logger)
	logger.Warn("still visible")
	assert.Contains(t, console.String(), "still visible")
}

func TestRotatingWriter_Rotation(t *testing.T) {
	// Given: a writer with a tiny size limit
	path := filepath.Join(t.TempDir(), "servicereport.log")
	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	w.maxSize = 10

	// When: writing past the limit several times
	for i := 0; i < 5; i++ {
		_, err := w.Write([]byte("0123456789"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	// Then: at most three files exist
	assert.FileExists(t, path)
	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servicereport.log")
	w, err := NewRotatingWriter(path, 10, 5)
	require.NoError(t, err)
	defer w.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = w.Write([]byte("line\n"))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, w.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 400, strings.Count(string(data), "line\n"))
}
