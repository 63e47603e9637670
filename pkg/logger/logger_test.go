package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LevelParsing(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run("level_"+tt.level, func(t *testing.T) {
			New(Config{Level: tt.level})
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}

func TestNew_PrettyOutput(t *testing.T) {
	assert.NotPanics(t, func() {
		l := New(Config{Level: "info", Pretty: true})
		l.Info().Msg("console output")
	})
}

func TestComponentLoggerCarriesComponentField(t *testing.T) {
	New(Config{Level: "debug"})

	// Each module derives its own logger the same way; the component tag
	// must survive into every event.
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	components := []string{"risk", "optimizer", "rebalancing", "symbol_metadata"}
	for _, component := range components {
		buf.Reset()
		l := base.With().Str("component", component).Logger()
		l.Info().Str("portfolio_id", "p1").Msg("snapshot complete")

		out := buf.String()
		assert.Contains(t, out, `"component":"`+component+`"`)
		assert.Contains(t, out, `"portfolio_id":"p1"`)
	}
}

func TestGlobalLevelFiltersComponentLoggers(t *testing.T) {
	New(Config{Level: "warn"})
	defer New(Config{Level: "info"})

	var buf bytes.Buffer
	l := zerolog.New(&buf).With().Str("component", "engine").Logger()

	l.Debug().Msg("solver iteration")
	l.Info().Msg("frontier point accepted")
	assert.Empty(t, buf.String())

	l.Warn().Msg("optimizer fell back to Nelder-Mead")
	require.Contains(t, buf.String(), "Nelder-Mead")
	assert.Contains(t, buf.String(), `"component":"engine"`)
}

func TestSetGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	custom := zerolog.New(&buf).With().Str("component", "server").Logger()

	SetGlobalLogger(custom)
	defer SetGlobalLogger(New(Config{Level: "info"}))

	log.Logger.Info().Msg("listening")
	assert.Contains(t, buf.String(), `"component":"server"`)
	assert.Contains(t, buf.String(), "listening")
}
