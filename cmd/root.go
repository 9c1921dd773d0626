// Package cmd implements the quill command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Quill - chat backend with per-chat file content caching",
	Long: `Quill is the backend for a web chat assistant. It serves chat and
document CRUD, stores file attachments in S3-compatible blob storage, and
resolves attachment content through an in-process TTL cache so repeated
references within a conversation do not refetch and re-extract files.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
