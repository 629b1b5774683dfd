package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/mnemo/pkg/memory"
)

var (
	listProject string
	listTags    []string
	listLimit   int
	listOffset  int
	listJSON    bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List memories, newest first",
	Long: `List stored memories filtered by project and tags. A memory matches
a tag filter when it carries at least one of the given tags.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listProject, "project", "p", "", "filter by project")
	listCmd.Flags().StringSliceVarP(&listTags, "tag", "t", nil, "filter by tag (repeatable)")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "maximum number of memories")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "number of memories to skip")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output memories as JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	records, err := a.service.List(context.Background(), memory.FilterOptions{
		Project: listProject,
		Tags:    listTags,
		Limit:   listLimit,
		Offset:  listOffset,
	})
	if err != nil {
		return err
	}

	if listJSON {
		if records == nil {
			records = []memory.Memory{}
		}
		return json.NewEncoder(os.Stdout).Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No memories found")
		return nil
	}

	for _, rec := range records {
		created := time.UnixMilli(rec.Timestamp).Format(time.RFC3339)
		fmt.Printf("[%s] %s", rec.ID, created)
		if rec.Project != "" {
			fmt.Printf(" project=%s", rec.Project)
		}
		if len(rec.Tags) > 0 {
			fmt.Printf(" tags=%v", rec.Tags)
		}
		if rec.UsageCount > 0 {
			fmt.Printf(" used=%d", rec.UsageCount)
		}
		fmt.Printf("\n  %s\n", rec.Content)
	}
	return nil
}
