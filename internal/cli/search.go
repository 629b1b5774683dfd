package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harun/mnemo/pkg/memory"
)

var (
	searchLimit   int
	searchNoBoost bool
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search memories by meaning and keywords",
	Long: `Run hybrid retrieval over stored memories: vector similarity and
keyword matching combined into one ranking. Frequently retrieved memories
rank slightly higher unless --no-boost is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchNoBoost, "no-boost", false, "disable usage-based ranking boost")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	results, err := a.retriever.Search(context.Background(), args[0], memory.SearchOptions{
		Limit:         searchLimit,
		BoostFrequent: !searchNoBoost,
	})
	if err != nil {
		return err
	}

	if searchJSON {
		return json.NewEncoder(os.Stdout).Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No memories found")
		return nil
	}

	printResults(results)
	return nil
}

func printResults(results []memory.RankedResult) {
	for i, res := range results {
		fmt.Printf("%d. [%s] score=%.4f", i+1, res.ID, res.Score)
		if res.Project != "" {
			fmt.Printf(" project=%s", res.Project)
		}
		if len(res.Tags) > 0 {
			fmt.Printf(" tags=%v", res.Tags)
		}
		fmt.Printf("\n   %s\n", res.Content)
	}
}
