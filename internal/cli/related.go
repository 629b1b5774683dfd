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
	relatedLimit   int
	relatedNoBoost bool
	relatedJSON    bool
)

var relatedCmd = &cobra.Command{
	Use:   "related <id>",
	Short: "Find memories similar to an existing one",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelated,
}

func init() {
	relatedCmd.Flags().IntVarP(&relatedLimit, "limit", "n", 5, "maximum number of results")
	relatedCmd.Flags().BoolVar(&relatedNoBoost, "no-boost", false, "disable usage-based ranking boost")
	relatedCmd.Flags().BoolVar(&relatedJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(relatedCmd)
}

func runRelated(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	results, err := a.retriever.Related(context.Background(), args[0], memory.SearchOptions{
		Limit:         relatedLimit,
		BoostFrequent: !relatedNoBoost,
	})
	if err != nil {
		return err
	}

	if relatedJSON {
		return json.NewEncoder(os.Stdout).Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No related memories found")
		return nil
	}

	printResults(results)
	return nil
}
