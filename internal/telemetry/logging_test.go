package telemetry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/storefront/internal/telemetry"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		check zapcore.Level
		want  bool
	}{
		{"debug enables debug", "debug", zapcore.DebugLevel, true},
		{"upper case is accepted", "DEBUG", zapcore.DebugLevel, true},
		{"info hides debug", "INFO", zapcore.DebugLevel, false},
		{"warn hides info", "warn", zapcore.InfoLevel, false},
		{"error enables error", "error", zapcore.ErrorLevel, true},
		{"unknown falls back to info", "bogus", zapcore.InfoLevel, true},
		{"unknown hides debug", "bogus", zapcore.DebugLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := telemetry.NewLogger(tt.level, "storefront", "1.2.3")
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.Core().Enabled(tt.check))
		})
	}
}
