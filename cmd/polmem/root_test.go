package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("POLMEM_EXECUTABLE", "env.exe")
	t.Setenv("POLMEM_SINK_BASE_URL", "http://env:1")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "env.exe", cfg.Executable)

	executableFlag, collectorFlag = "flag.exe", "http://flag:2"
	defer func() { executableFlag, collectorFlag = "", "" }()

	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "flag.exe", cfg.Executable)
	assert.Equal(t, "http://flag:2", cfg.Sink.BaseURL)
	assert.Equal(t, "FFXiMain.dll", cfg.GameModule)
}

func TestCommandsAreRegistered(t *testing.T) {
	for _, name := range []string{"run", "ps", "show", "history", "peek"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
