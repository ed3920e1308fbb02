package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "navbench",
		Short: "Monte Carlo test harness for visual relative-navigation pose estimation",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "navbench.yaml", "config file path")
	root.AddCommand(newRunCmd())
	root.AddCommand(newReplayCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newValidateCmd())
	return root
}
