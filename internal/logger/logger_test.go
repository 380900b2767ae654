package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		environment string
		enabled     zapcore.Level
		disabled    *zapcore.Level
	}{
		{name: "Debug console", level: "debug", environment: "development", enabled: zapcore.DebugLevel},
		{name: "Warn json", level: "warn", environment: "production", enabled: zapcore.WarnLevel, disabled: levelPtr(zapcore.InfoLevel)},
		{name: "Unknown level falls back to info", level: "loud", environment: "test", enabled: zapcore.InfoLevel, disabled: levelPtr(zapcore.DebugLevel)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.level, tt.environment)
			require.NoError(t, err)
			require.NotNil(t, log)
			require.True(t, log.Core().Enabled(tt.enabled))
			if tt.disabled != nil {
				require.False(t, log.Core().Enabled(*tt.disabled))
			}
		})
	}
}

func levelPtr(l zapcore.Level) *zapcore.Level {
	return &l
}
