package commands

import (
	"github.com/spf13/cobra"

	"github.com/user/release-tracker/internal/commands/diff"
	"github.com/user/release-tracker/internal/commands/serve"
)

var rootCmd = &cobra.Command{
	Use:   "reltracker",
	Short: "Track upstream releases and the commits they ship",
}

func init() {
	rootCmd.AddCommand(serve.NewCommand())
	rootCmd.AddCommand(diff.NewCommand())
}

func Execute() error {
	return rootCmd.Execute()
}
