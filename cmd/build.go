package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitegen/internal/build"
	"github.com/conneroisu/sitegen/internal/config"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Render the site once and exit",
	Long: `Render every template and copy every asset from the input directory
into the output directory. Exits non-zero when any entry fails, after
still writing everything that rendered successfully.`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().Bool("clean", false, "remove the output directory before building")
	buildCmd.Flags().StringSlice("ext", nil, "template source extensions (default .html,.htm)")

	bindFlags(buildCmd.Flags(), map[string]string{
		"templates.extensions": "ext",
	})
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := newLogger()
	builder := build.New(cfg, log)

	if clean, _ := cmd.Flags().GetBool("clean"); clean {
		if err := builder.Clean(); err != nil {
			return fmt.Errorf("cleaning output directory: %w", err)
		}
	}

	report, err := builder.Build(cmd.Context(), build.FullScope())
	if err != nil {
		return err
	}

	fmt.Printf("Built %d entries into %s (%s)\n",
		len(report.Succeeded), cfg.Output, report.Duration.Round(time.Millisecond))

	if !report.OK() {
		for _, f := range report.Failed {
			fmt.Printf("  failed: %s: %v\n", f.Path, f.Err)
		}
		return fmt.Errorf("%d of %d entries failed",
			len(report.Failed), len(report.Failed)+len(report.Succeeded))
	}

	return nil
}
