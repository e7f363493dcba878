package signalctl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterrupted_DefaultsFalse(t *testing.T) {
	Reset()
	assert.False(t, Interrupted())
}

func TestInterrupted_ReflectsFlag(t *testing.T) {
	Reset()
	interrupted.Store(true)
	assert.True(t, Interrupted())
	Reset()
	assert.False(t, Interrupted())
}

func TestExitCodes_MatchContract(t *testing.T) {
	assert.Equal(t, ExitCode(0), ExitOK)
	assert.Equal(t, ExitCode(2), ExitNoResults)
	assert.Equal(t, ExitCode(130), ExitInterrupted)
}
