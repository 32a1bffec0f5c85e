package logtrace

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestInitLogger(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() { log.Logger = saved })

	var buf bytes.Buffer
	initLogger(&buf, "warn", false)
	log.Info().Msg("hidden")
	log.Warn().Str("stage", "RequestToken").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"stage":"RequestToken"`)
	assert.Equal(t, zerolog.WarnLevel, log.Logger.GetLevel())

	initLogger(&buf, "bogus", false)
	assert.Equal(t, zerolog.InfoLevel, log.Logger.GetLevel())
}

func TestAttemptID(t *testing.T) {
	assert.Equal(t, "", AttemptIDFromContext(context.Background()))
	assert.Equal(t, "", AttemptIDFromContext(nil))

	ctx := WithAttemptID(context.Background(), "0197-attempt")
	assert.Equal(t, "0197-attempt", AttemptIDFromContext(ctx))
}
