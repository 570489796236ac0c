package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"familysync/internal/service"
)

var (
	exportOutput string
	importInput  string
	importClear  bool
	assumeYes    bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export or import the database as JSON",
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the database to a JSON file",
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a JSON backup, skipping rows that already exist",
	RunE:  runImport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	importCmd.Flags().StringVarP(&importInput, "input", "i", "", "Input file path")
	importCmd.Flags().BoolVar(&importClear, "clear", false, "Clear existing data before import (WARNING: destructive)")
	importCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation before clearing")
	_ = importCmd.MarkFlagRequired("input")

	backupCmd.AddCommand(exportCmd)
	backupCmd.AddCommand(importCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	outputPath := exportOutput
	if outputPath == "" {
		outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
	}

	// Ensure directory exists
	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer file.Close()

	log.Printf("Exporting database to: %s", outputPath)
	if err := service.NewBackupService(db).Export(context.Background(), file); err != nil {
		return err
	}

	if info, err := file.Stat(); err == nil {
		log.Printf("Export complete! File size: %.2f MB", float64(info.Size())/1024/1024)
	}
	cmd.Println(outputPath)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	file, err := os.Open(importInput)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer file.Close()

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	backup := service.NewBackupService(db)

	if importClear {
		if !assumeYes && !confirm(cmd, "WARNING: This will delete all existing data. Type 'yes' to confirm: ") {
			cmd.Println("Import cancelled")
			return nil
		}
		log.Println("Clearing existing data...")
		if err := backup.Clear(ctx); err != nil {
			return err
		}
	}

	log.Printf("Importing database from: %s", importInput)
	summary, err := backup.Import(ctx, file)
	if err != nil {
		return err
	}

	printSummary(cmd, summary)
	return nil
}

func confirm(cmd *cobra.Command, prompt string) bool {
	cmd.Print(prompt)
	answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.TrimSpace(answer) == "yes"
}

func printSummary(cmd *cobra.Command, summary *service.ImportSummary) {
	names := make([]string, 0, len(summary.Inserted)+len(summary.Skipped))
	seen := map[string]bool{}
	for _, counts := range []map[string]int{summary.Inserted, summary.Skipped} {
		for name := range counts {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)

	for _, name := range names {
		cmd.Printf("%-16s inserted %d, skipped %d\n", name, summary.Inserted[name], summary.Skipped[name])
	}
}
