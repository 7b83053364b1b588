package diagnostics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playground.evalgo.org/common"
)

func TestDockerCommandRunner_CollectsOutput(t *testing.T) {
	mock := common.NewMockDockerClient()
	mock.ExecOutput = "up 2 hours\n"

	runner := NewDockerCommandRunner(mock)
	result, err := runner.Exec(context.Background(), "id-mysql", []string{"uptime"})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "up 2 hours\n", result.Output)
	assert.Equal(t, 0, result.ExitCode)
	require.Len(t, mock.ExecCommands, 1)
	assert.Equal(t, []string{"uptime"}, mock.ExecCommands[0])
}

func TestDockerCommandRunner_ReportsFailureExitCode(t *testing.T) {
	mock := common.NewMockDockerClient()
	mock.ExecExitCode = 1

	runner := NewDockerCommandRunner(mock)
	result, err := runner.Exec(context.Background(), "id-mysql", []string{"test", "-f", "/missing"})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.ExitCode)
}
