package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store status",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	status, err := a.service.Status(context.Background())
	if err != nil {
		return err
	}

	if statusJSON {
		return json.NewEncoder(os.Stdout).Encode(status)
	}

	fmt.Printf("Memories: %d\n", status.Memories)
	fmt.Printf("Store: %s\n", status.StorePath)
	fmt.Printf("Embedding: %s/%s (dimension %d)\n",
		status.Embedding.Provider, status.Embedding.Model, status.Embedding.Dimension)
	if status.LastImport > 0 {
		fmt.Printf("Last import: %s\n", time.UnixMilli(status.LastImport).Format(time.RFC3339))
	}
	return nil
}
