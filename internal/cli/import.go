package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var importDir string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import markdown notes as memories",
	Long: `Sync a directory of markdown files into the store. Each file becomes
one memory tagged "imported". Re-running only touches files whose content
changed and removes memories whose source file disappeared.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importDir, "dir", "d", "", "notes directory (default from config)")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if importDir != "" {
		a.cfg.Import.Dir = importDir
	}
	importer := a.newImporter()
	if importer == nil {
		return fmt.Errorf("no import directory configured; pass --dir or set import.dir")
	}

	stats, err := importer.Sync(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Import complete: %d added, %d updated, %d pruned, %d unchanged\n",
		stats.Added, stats.Updated, stats.Pruned, stats.Unchanged)
	return nil
}
