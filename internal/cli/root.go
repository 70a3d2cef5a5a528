// Package cli wires the phase-execution engine's components into a
// standalone command-line entry point, the way the teacher's
// internal/cli package wires its provisioner/session flow: a cobra root
// command, viper-backed config resolution, and one subcommand per
// operator action.
package cli

import (
	"fmt"
	"os"

	"github.com/ixado-dev/ixado/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var projectRoot string
var roleFlag string

var rootCmd = &cobra.Command{
	Use:   "ixado",
	Short: "ixado drives external AI coding assistants through a fixed development-phase workflow",
	Long: `ixado is an autonomous development-phase orchestrator.

It drives external AI coding assistants through branch preparation,
iterative task execution, local test validation, pull-request creation,
CI polling, review validation, and automated recovery from a closed set
of failures, producing a green PR on an external code-hosting service.

Example:
  ixado phase run --project .`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Version = version.Short()
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .ixado.yaml)")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project", ".", "project root directory")
	rootCmd.PersistentFlags().StringVar(&roleFlag, "role", "owner", "acting role (owner, admin, operator, viewer)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(projectRoot)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ixado")
	}

	viper.SetEnvPrefix("IXADO")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
