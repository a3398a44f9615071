package eyetracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewSelectsImplementation(t *testing.T) {
	assert.IsType(t, Nop{}, New(false, zap.NewNop()))
	assert.IsType(t, &Logging{}, New(true, zap.NewNop()))
}

func TestLoggingCountsMessagesWhileRecording(t *testing.T) {
	tr := New(true, zap.NewNop()).(*Logging)
	tr.Message("before start")
	require.NoError(t, tr.Start())
	require.Error(t, tr.Start())
	tr.Message("trial 1")
	tr.Message("trial 2")
	require.NoError(t, tr.Stop())
	tr.Message("after stop")
	assert.Equal(t, 2, tr.Messages())
}
