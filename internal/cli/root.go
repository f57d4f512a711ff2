package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Study supervision engine with tiered memory and trust",
	Long:  "Vigil watches reported activity, keeps a tiered memory of what happened, and maintains a per-user trust score. Single Go binary.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (yaml)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trustCmd)
	rootCmd.AddCommand(consolidateCmd)
}
