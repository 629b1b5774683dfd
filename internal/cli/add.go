package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/mnemo/pkg/memory"
)

var (
	addProject string
	addTags    []string
)

var addCmd = &cobra.Command{
	Use:   "add <content> [content...]",
	Short: "Store one or more memories",
	Long: `Store natural-language notes as memories. Passing several content
arguments stores them as one atomic batch sharing a creation timestamp.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addProject, "project", "p", "", "project scope for the memories")
	addCmd.Flags().StringSliceVarP(&addTags, "tag", "t", nil, "tag to attach (repeatable)")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	if len(args) == 1 {
		rec, err := a.service.Add(ctx, memory.AddParams{
			Content: args[0],
			Project: addProject,
			Tags:    addTags,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Stored memory %s\n", rec.ID)
		return nil
	}

	batch := make([]memory.AddParams, len(args))
	for i, content := range args {
		batch[i] = memory.AddParams{
			Content: content,
			Project: addProject,
			Tags:    addTags,
		}
	}

	records, err := a.service.AddBatch(ctx, batch)
	if err != nil {
		return err
	}

	for _, rec := range records {
		fmt.Printf("Stored memory %s\n", rec.ID)
	}
	return nil
}
