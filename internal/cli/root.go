package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stencilhq/stencil/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "stencil",
	Short: "Stencil: schema-driven project configuration reconciler",
	Long: `Stencil keeps toolkit configuration files in user projects aligned
with a versioned schema. It regenerates the files it owns, folds missing
fragments into shared files without touching user content, and retires
paths older schema versions left behind, only when their content is
provably untouched.`,
	Version: version.GetVersion(),

	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute initializes dependencies and runs the root command.
func Execute() error {
	InitDependencies()
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("stencil %s\n", version.GetVersion()))
}
