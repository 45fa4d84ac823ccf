package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitegen/internal/config"
)

// The templates and ignore options are shared by build and serve.
// They must be bound to viper exactly once: viper keeps only the last
// binding per key, so per-subcommand bindings would leave one command's
// flags silently ignored.
func TestSharedFlagsReachConfig(t *testing.T) {
	require.NoError(t, rootCmd.PersistentFlags().Set("templates", "partials"))
	require.NoError(t, rootCmd.PersistentFlags().Set("ignore", "drafts"))

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "partials", cfg.Templates.Dir)
	assert.Equal(t, []string{"drafts"}, cfg.Ignore)
}

func TestSubcommandsDoNotRebindSharedKeys(t *testing.T) {
	for _, name := range []string{"templates", "ignore"} {
		assert.Nil(t, buildCmd.Flags().Lookup(name), "build redefines --%s", name)
		assert.Nil(t, serveCmd.Flags().Lookup(name), "serve redefines --%s", name)
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "--%s missing from root", name)
	}
}
