package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orrery/internal/adapters/logger"
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/zerr"
)

// newTestLogger creates a logger writing to a buffer with colors disabled.
func newTestLogger(t *testing.T) (*logger.Logger, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	buf := &bytes.Buffer{}
	lg := logger.New().(*logger.Logger)
	lg.SetOutput(buf)
	return lg, buf
}

func TestLogger_Info(t *testing.T) {
	tests := []struct {
		name       string
		msg        string
		goldenName string
	}{
		{name: "simple message", msg: "cache restored from backup", goldenName: "info_basic"},
		{name: "empty message", msg: "", goldenName: "info_empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg, buf := newTestLogger(t)
			lg.Info(tt.msg)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestLogger_Warn(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Warn("serving stale data")

	g := goldie.New(t)
	g.Assert(t, "warn_basic", buf.Bytes())
}

func TestLogger_Error(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		goldenName string
	}{
		{
			name: "zerr chain with metadata",
			err: zerr.With(
				zerr.Wrap(domain.ErrCacheUnavailable, "no valid backup to restore"),
				"key", "co2-mauna-loa",
			),
			goldenName: "error_chain_zerr",
		},
		{
			name:       "stdlib chain",
			err:        fmt.Errorf("load cache: %w", os.ErrNotExist),
			goldenName: "error_chain_stdlib",
		},
		{
			name:       "multiline error",
			err:        errors.New("yaml: unmarshal errors:\n  line 3: cannot unmarshal"),
			goldenName: "error_multiline",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg, buf := newTestLogger(t)
			lg.Error(tt.err)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestLogger_ErrorNil(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Error(nil)
	assert.Empty(t, buf.String())
}

func TestLogger_SetLevel(t *testing.T) {
	lg, buf := newTestLogger(t)

	require.NoError(t, lg.SetLevel("warn"))
	lg.Info("hidden")
	lg.Warn("shown")
	assert.Equal(t, "! shown\n", buf.String())

	err := lg.SetLevel("loud")
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestLogger_JSON(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.SetJSON(true)

	lg.Warn("serving stale data")
	lg.Error(zerr.Wrap(domain.ErrFetch, "all sources failed"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var warn map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &warn))
	assert.Equal(t, "WARN", warn["level"])
	assert.Equal(t, "serving stale data", warn["msg"])

	var failure map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &failure))
	assert.Equal(t, "ERROR", failure["level"])
	assert.Equal(t, "operation failed", failure["msg"])
	assert.NotNil(t, failure["error"])
}

func TestPrettyHandler(t *testing.T) {
	tests := []struct {
		name       string
		log        func(*slog.Logger)
		goldenName string
	}{
		{
			name:       "attrs",
			log:        func(l *slog.Logger) { l.With("dataset", "gistemp").Info("fetched", "records", 144) },
			goldenName: "handler_attrs",
		},
		{
			name:       "group",
			log:        func(l *slog.Logger) { l.WithGroup("source").Info("fetched", "name", "nasa-giss") },
			goldenName: "handler_group",
		},
		{
			name:       "debug filtered",
			log:        func(l *slog.Logger) { l.Debug("noise") },
			goldenName: "handler_debug_filtered",
		},
		{
			name:       "warn",
			log:        func(l *slog.Logger) { l.Warn("retrying") },
			goldenName: "handler_warn",
		},
		{
			name:       "error",
			log:        func(l *slog.Logger) { l.Error("failed") },
			goldenName: "handler_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", "1")

			buf := &bytes.Buffer{}
			tt.log(slog.New(logger.NewPrettyHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}
