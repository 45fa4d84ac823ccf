// Package cmd provides the sitegen command-line interface.
//
// Configuration is layered: command-line flags override SITEGEN_
// prefixed environment variables, which override the .sitegen.yml
// config file. Flags are bound to viper keys so every option can come
// from any of the three sources.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitegen/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sitegen",
	Short: "Render a directory of templates into a static website",
	Long: `sitegen renders a directory tree of html/template sources into a
static website. Template files are rendered against a shared context,
everything else is copied verbatim, and a templates/ directory holds
includes shared between pages.

Quick start:
  sitegen init mysite       Scaffold a starter site
  sitegen build             Render the site into the output directory
  sitegen serve             Development mode: serve, watch and live-reload`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Errors are printed once, here.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .sitegen.yml)")
	rootCmd.PersistentFlags().StringP("input", "i", ".", "input directory")
	rootCmd.PersistentFlags().StringP("output", "o", "out", "output directory")
	rootCmd.PersistentFlags().String("templates", "templates", "shared-templates directory name")
	rootCmd.PersistentFlags().StringSlice("ignore", nil, "directories to ignore")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")

	// Options shared between build and serve are bound here, once.
	// viper keeps only the last binding per key, so a second binding
	// from a subcommand would silently shadow the first.
	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"input":         "input",
		"output":        "output",
		"templates.dir": "templates",
		"ignore":        "ignore",
		"log-level":     "log-level",
	})
}

// initConfig wires viper to the config file and environment. A missing
// config file is fine; sitegen runs on defaults.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sitegen")
	}

	viper.SetEnvPrefix("SITEGEN")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger from the resolved log level.
func newLogger() logging.Logger {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(viper.GetString("log-level"))
	return logging.New(cfg)
}
