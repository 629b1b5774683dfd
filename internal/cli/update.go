package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/mnemo/pkg/memory"
)

var (
	updateContent string
	updateProject string
	updateTags    []string
)

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update an existing memory in place",
	Long: `Update a memory's content, project or tags. The creation timestamp
and usage statistics are preserved; the embedding is regenerated only when
the content changes. Only the flags you pass are modified.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringVarP(&updateContent, "content", "c", "", "new content")
	updateCmd.Flags().StringVarP(&updateProject, "project", "p", "", "new project scope")
	updateCmd.Flags().StringSliceVarP(&updateTags, "tag", "t", nil, "replacement tags (repeatable, empty clears)")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	params := memory.UpdateParams{}
	if cmd.Flags().Changed("content") {
		params.Content = &updateContent
	}
	if cmd.Flags().Changed("project") {
		params.Project = &updateProject
	}
	if cmd.Flags().Changed("tag") {
		params.Tags = updateTags
		params.SetTags = true
	}

	if params.Content == nil && params.Project == nil && !params.SetTags {
		return fmt.Errorf("nothing to update; pass --content, --project or --tag")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	rec, err := a.service.Update(context.Background(), args[0], params)
	if err != nil {
		return err
	}

	fmt.Printf("Updated memory %s\n", rec.ID)
	return nil
}
