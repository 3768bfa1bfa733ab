package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelRouterSplitsStreams(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := slog.New(newLevelRouter(&stdout, &stderr, slog.LevelInfo, "json"))

	logger.Debug("hidden")
	logger.Info("started", "addr", ":5000")
	logger.With("component", "api").Warn("slow")
	logger.Error("boom")

	assert.NotContains(t, stdout.String(), "hidden")
	assert.Contains(t, stdout.String(), `"msg":"started"`)
	assert.Contains(t, stdout.String(), `"component":"api"`)
	assert.NotContains(t, stdout.String(), "boom")
	assert.Contains(t, stderr.String(), `"msg":"boom"`)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := parseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := parseLevel("loud")
	assert.Error(t, err)
}
