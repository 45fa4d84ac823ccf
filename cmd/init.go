package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitegen/internal/scaffold"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Scaffold a starter site",
	Long: `Create a minimal site in the given directory (default: current
directory): an index page, shared header/footer templates, a stylesheet,
a render context, and a .sitegen.yml config. The directory must be new
or empty.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	if err := scaffold.Create(dir); err != nil {
		return err
	}

	fmt.Printf("Scaffolded %q in %s\n", scaffold.TitleFromDir(dir), dir)
	fmt.Println("Next: cd into it and run `sitegen serve`")
	return nil
}
