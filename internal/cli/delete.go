package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id> [id...]",
	Short: "Delete memories by id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	for _, id := range args {
		if err := a.service.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Deleted memory %s\n", id)
	}
	return nil
}
