package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"familysync/internal/config"
	"familysync/internal/database"
	"familysync/migrations"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "famctl",
	Short: "FamilySync administration tool",
	Long: `famctl manages a FamilySync database.

The database is selected the same way the server selects it: DATABASE_TYPE,
DB_PATH and DATABASE_URL from the environment or a .env file, optionally
overridden by a YAML file given with --config.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Printf("Warning: failed to load .env: %v", err)
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", os.Getenv("CONFIG_FILE"), "YAML config file")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(versionCmd)
}

// openDatabase connects using the configured dialect and brings the schema up to date
func openDatabase() (*database.DB, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, err
	}

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.RunMigrationsFS(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
