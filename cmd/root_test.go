package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SquizAI/recipies01/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"extract", "serve", "runs", "pdf", "migrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "recipe-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Equal(t, version, rootCmd.Version)
	assert.True(t, rootCmd.SilenceUsage)
	assert.NotNil(t, rootCmd.PersistentPostRun, "logger must be synced after every command")

	for _, flag := range []string{"log-level", "log-format"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), "missing --%s", flag)
	}
}

func TestApplyLogFlags(t *testing.T) {
	t.Cleanup(func() { logLevel, logFormat = "", "" })

	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "")

	lc := config.LogConfig{Level: "info", Format: "json"}
	applyLogFlags(cmd, &lc)
	assert.Equal(t, config.LogConfig{Level: "info", Format: "json"}, lc, "unset flags leave config alone")

	require.NoError(t, cmd.Flags().Set("log-level", "debug"))
	applyLogFlags(cmd, &lc)
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "json", lc.Format)
}

func TestExtractCommand_Flags(t *testing.T) {
	for flag, def := range map[string]string{
		"file":        "",
		"format":      "json",
		"pdf":         "",
		"concurrency": "0",
	} {
		f := extractCmd.Flags().Lookup(flag)
		require.NotNil(t, f, "extract command should have --%s flag", flag)
		assert.Equal(t, def, f.DefValue, flag)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestPDFCommand_Flags(t *testing.T) {
	flag := pdfCmd.Flags().ShorthandLookup("o")
	require.NotNil(t, flag)
	assert.Equal(t, "output", flag.Name)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])

	limit := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "50", limit.DefValue)
}
