package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestInitializeConfig_AppliesDefaults(t *testing.T) {
	resetViper(t)
	cfgFile = ""

	require.NoError(t, initializeConfig())

	assert.Equal(t, "adb", viper.GetString("device.adb_path"))
	assert.Equal(t, "Droidpilot_Mirror", viper.GetString("mirror.window_title"))
	assert.Equal(t, "00:30", viper.GetString("schedule.regen_start"))
	assert.InDelta(t, 0.51, viper.GetFloat64("perception.threshold"), 1e-9)
}

func TestInitializeConfig_EnvOverride(t *testing.T) {
	resetViper(t)
	cfgFile = ""
	t.Setenv("DROIDPILOT_SCHEDULE_PROFILE", "h")

	require.NoError(t, initializeConfig())

	assert.Equal(t, "h", viper.GetString("schedule.profile"))
}

func TestInitializeConfig_MissingExplicitFile(t *testing.T) {
	resetViper(t)
	cfgFile = "/nonexistent/droidpilot.yaml"
	t.Cleanup(func() { cfgFile = "" })

	require.Error(t, initializeConfig())
}

func TestRunCommandIsRegistered(t *testing.T) {
	c, _, err := rootCmd.Find([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "run", c.Name())
	assert.NotNil(t, c.Flags().Lookup("profile"))
	assert.NotNil(t, c.Flags().Lookup("unlock"))
}
