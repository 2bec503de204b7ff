package coordinator

import (
	"sort"

	"github.com/google/uuid"

	"github.com/financial-twin-engine/internal/categorizer"
	"github.com/financial-twin-engine/internal/domain/syncrun"
	"github.com/financial-twin-engine/internal/domain/transaction"
	"github.com/financial-twin-engine/internal/platform/aggregator"
)

// mergeResult is the twin's transaction set after applying an aggregator delta
type mergeResult struct {
	All     []transaction.Transaction
	Upserts []transaction.Transaction
	Removed []string
	Counts  syncrun.Counts
}

// mergeDelta applies added, modified and removed rows to the stored set.
// Only new and changed rows are categorized; stored rows keep their category.
// Recurrence is recomputed over the whole set and rows whose flag flipped are
// written back too.
func mergeDelta(stored []transaction.Transaction, delta *aggregator.Delta, twinID uuid.UUID, cat Categorizer) mergeResult {
	byID := make(map[string]transaction.Transaction, len(stored))
	wasRecurring := make(map[string]bool, len(stored))
	for _, tx := range stored {
		byID[tx.ID] = tx
		wasRecurring[tx.ID] = tx.IsRecurring
	}

	var res mergeResult
	incoming := make([]transaction.Transaction, 0, len(delta.Added)+len(delta.Modified))
	incoming = append(incoming, delta.Added...)
	incoming = append(incoming, delta.Modified...)
	for i := range incoming {
		incoming[i].TwinID = twinID
	}

	changed := make(map[string]bool, len(incoming))
	for _, tx := range cat.Categorize(incoming) {
		if _, ok := byID[tx.ID]; ok {
			if !changed[tx.ID] {
				res.Counts.Updated++
			}
		} else {
			res.Counts.New++
		}
		byID[tx.ID] = tx
		changed[tx.ID] = true
	}

	for _, id := range delta.Removed {
		if _, ok := byID[id]; ok {
			delete(byID, id)
			delete(changed, id)
			res.Counts.Removed++
		}
		res.Removed = append(res.Removed, id)
	}

	all := make([]transaction.Transaction, 0, len(byID))
	for _, tx := range byID {
		tx.IsRecurring = false
		all = append(all, tx)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.Before(all[j].Date)
		}
		return all[i].ID < all[j].ID
	})
	res.All = categorizer.DetectRecurring(all)

	for _, tx := range res.All {
		if changed[tx.ID] || tx.IsRecurring != wasRecurring[tx.ID] {
			res.Upserts = append(res.Upserts, tx)
		}
	}
	return res
}
