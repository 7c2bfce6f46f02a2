package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zsolt-donca/scanout/internal/logger"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		logger.Infof("scanout %s", Version)
	},
}
