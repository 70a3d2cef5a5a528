package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ixado-dev/ixado/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ixado version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.Info())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
