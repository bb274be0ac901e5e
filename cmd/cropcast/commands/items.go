package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lorraine/cropcast/internal/contracts"
	"github.com/lorraine/cropcast/internal/history"
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List forecastable items",
	Long: `Lists the items that can actually be forecast: those with both a
trained model and price history in the database. Modeled items without
history are summarized separately.

Example:
  go run ./cmd/cropcast items`,
	RunE: runItems,
}

func init() {
	rootCmd.AddCommand(itemsCmd)
}

func runItems(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, log, db, err := initDeps()
	if err != nil {
		return err
	}
	defer db.Close()

	registry, err := loadRegistry(cfg, log)
	if err != nil {
		return err
	}

	histRepo := history.NewRepository(db.Pool)
	observed, err := histRepo.AvailableItems(ctx)
	if err != nil {
		return fmt.Errorf("list observed items: %w", err)
	}

	ready, noHistory := partitionItems(registry.Items(), observed)

	fmt.Printf("=== Cropcast: Items (%d forecastable) ===\n\n", len(ready))
	for _, item := range ready {
		fmt.Printf("  %6d\n", int(item))
	}
	if len(noHistory) > 0 {
		fmt.Printf("\n%d modeled item(s) without price history:", len(noHistory))
		for _, item := range noHistory {
			fmt.Printf(" %d", int(item))
		}
		fmt.Println()
	}

	return nil
}

// partitionItems splits modeled items into those with price history and
// those without, preserving the modeled order.
func partitionItems(modeled, observed []contracts.ItemID) (ready, noHistory []contracts.ItemID) {
	hasHistory := make(map[contracts.ItemID]bool, len(observed))
	for _, item := range observed {
		hasHistory[item] = true
	}
	for _, item := range modeled {
		if hasHistory[item] {
			ready = append(ready, item)
		} else {
			noHistory = append(noHistory, item)
		}
	}
	return ready, noHistory
}
