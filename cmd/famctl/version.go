package main

import (
	"runtime"

	"github.com/spf13/cobra"

	"familysync/internal/service"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("famctl version %s\n", Version)
		cmd.Printf("  Backup format: %s\n", service.BackupVersion)
		cmd.Printf("  Go version:    %s\n", runtime.Version())
	},
}
