package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")
	require.NotNil(t, log)

	log.Info().Str("conversation", "chat-1").Msg("conversation created")
	assert.Contains(t, buf.String(), "conversation created")
	assert.Contains(t, buf.String(), "chat-1")
}

func TestNewDefaultWriter(t *testing.T) {
	require.NotNil(t, New(nil, "info"))
}

func TestNewWithStyle(t *testing.T) {
	assert.NotNil(t, NewWithStyle(StyleJSON, "info"))
	assert.NotNil(t, NewWithStyle(StylePretty, "debug"))
	assert.NotNil(t, NewWithStyle("compact", "warn"))
}

func TestSubTagsSubsystem(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug").Sub("history")

	log.Debug().Msg("snapshot saved")
	assert.Contains(t, buf.String(), `"subsystem":"history"`)
	assert.Contains(t, buf.String(), "snapshot saved")
}

func TestWithAddsField(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info").With("requestId", "req-42")

	log.Info().Msg("chat request")
	assert.Contains(t, buf.String(), `"requestId":"req-42"`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Debug().Msg("debug msg")
	log.Info().Msg("info msg")
	assert.Empty(t, buf.String())

	log.Warn().Msg("warn msg")
	assert.Contains(t, buf.String(), "warn msg")
}

func TestSilentAndNop(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "silent")
	log.Error().Msg("hidden")
	assert.Empty(t, buf.String())

	// Nop must be safe to use without a writer.
	Nop().Error().Msg("hidden")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"silent", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}
