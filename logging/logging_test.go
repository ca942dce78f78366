package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	clog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]clog.Level{
		"debug":   clog.DebugLevel,
		"INFO":    clog.InfoLevel,
		"warning": clog.WarnLevel,
		" error ": clog.ErrorLevel,
		"":        clog.InfoLevel,
		"verbose": clog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSetupFansOutToFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var terminal bytes.Buffer
	path := filepath.Join(t.TempDir(), "quoteframe.log")
	closeFn, err := Setup(Options{Level: "info", File: path, Output: &terminal})
	require.NoError(t, err)

	slog.Debug("hidden detail")
	slog.Info("added slide", "length", 4)
	require.NoError(t, closeFn())

	assert.Contains(t, terminal.String(), "added slide")
	assert.NotContains(t, terminal.String(), "hidden detail")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "added slide")
	assert.Contains(t, string(data), `"length"`)
	assert.NotContains(t, string(data), "hidden detail")
}

func TestSetupBadFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	_, err := Setup(Options{File: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.Error(t, err)
}
