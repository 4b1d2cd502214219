package ledger

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDPrefixes(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewAccountID(), "lac_"))
	assert.True(t, strings.HasPrefix(NewTransactionID(), "txn_"))
	assert.True(t, strings.HasPrefix(NewEntryID(), "ent_"))
}

func TestIDsSortInCreationOrder(t *testing.T) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = NewEntryID()
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	assert.Equal(t, ids, sorted, "lexicographic order must match creation order")
}

func TestIDsAreSafeForConcurrentUse(t *testing.T) {
	const workers, perWorker = 8, 50
	out := make(chan string, workers*perWorker)
	for i := 0; i < workers; i++ {
		go func() {
			for j := 0; j < perWorker; j++ {
				out <- NewTransactionID()
			}
		}()
	}

	seen := make(map[string]bool, workers*perWorker)
	for i := 0; i < workers*perWorker; i++ {
		id := <-out
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
