package utils

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestSetLogLevel(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	require.NoError(t, SetLogLevel("debug"))
	require.Equal(t, log.DebugLevel, log.GetLevel())

	require.Error(t, SetLogLevel("chatty"))
	require.Equal(t, log.DebugLevel, log.GetLevel(), "invalid level leaves the current one")
}
