package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantLevel zapcore.Level
	}{
		{name: "json debug", cfg: Config{Level: "debug", Format: "json"}, wantLevel: zapcore.DebugLevel},
		{name: "console warn", cfg: Config{Level: "warn", Format: "console"}, wantLevel: zapcore.WarnLevel},
		{name: "unknown level", cfg: Config{Level: "loud"}, wantLevel: zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)
			require.True(t, logger.Core().Enabled(tt.wantLevel))
			require.False(t, logger.Core().Enabled(tt.wantLevel-1))
		})
	}
}

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")

	logger, err := New(Config{Level: "info", Format: "json", OutputPath: path})
	require.NoError(t, err)

	logger.Info("transfer settled")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "transfer settled"))
}

func TestL_BeforeInit(t *testing.T) {
	globalLogger = nil
	require.NotNil(t, L())
}
