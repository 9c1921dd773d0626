package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillchat/quill/internal/config"
	"github.com/quillchat/quill/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if err := database.Migrate(cfg.DSN()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}

		fmt.Println("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
