package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"trade-journal/internal/models"
)

// Property: after any sequence of appends, All returns the records in the
// order they were appended, the last append last.
func TestProperty_AppendPreservesInsertionOrder(t *testing.T) {
	dir := t.TempDir()
	run := 0

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("All() lists appended records in insertion order", prop.ForAll(
		func(prices []float64) bool {
			ctx := context.Background()
			run++
			s, err := NewCSVStore(filepath.Join(dir, fmt.Sprintf("journal_%d.csv", run)))
			if err != nil {
				return false
			}

			var ids []models.RecordID
			for i, p := range prices {
				rec := closedTrade(fmt.Sprintf("SYM%d", i), p, p+1)
				id, err := s.Append(ctx, rec)
				if err != nil {
					t.Logf("Append failed: %v", err)
					return false
				}
				ids = append(ids, id)

				all, err := s.All(ctx)
				if err != nil || len(all) != len(ids) || all[len(all)-1].ID != id {
					return false
				}
			}

			all, err := s.All(ctx)
			if err != nil || len(all) != len(ids) {
				return false
			}
			for i := range all {
				if all[i].ID != ids[i] || all[i].EntryPrice != prices[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.Float64Range(1, 1000)),
	))

	properties.TestingRun(t)
}
