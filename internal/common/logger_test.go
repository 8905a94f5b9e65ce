package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoggerReturnsSameInstance(t *testing.T) {
	first := GetLogger()
	require.NotNil(t, first)
	assert.Equal(t, first, GetLogger())
}

func TestInitLoggerConsoleOnly(t *testing.T) {
	config := NewDefaultConfig()
	config.Logging.Level = "debug"
	config.Logging.Output = []string{"stdout"}

	logger := InitLogger(config)
	require.NotNil(t, logger)

	// InitLogger installs the logger globally
	assert.Equal(t, logger, GetLogger())
	logger.Debug().Str("check", "console").Msg("logger works")
}
