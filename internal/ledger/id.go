package ledger

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Entity ids are prefixed monotonic ULIDs: opaque strings whose
// lexicographic order matches creation order.
const (
	accountIDPrefix     = "lac"
	transactionIDPrefix = "txn"
	entryIDPrefix       = "ent"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newID(prefix string) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return prefix + "_" + ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewAccountID returns a fresh ledger account id. Provisioning may also
// supply structured ids like "merchant:<id>:available:USD"; the registry
// accepts any unique non-empty string.
func NewAccountID() string { return newID(accountIDPrefix) }

// NewTransactionID returns a fresh transaction id.
func NewTransactionID() string { return newID(transactionIDPrefix) }

// NewEntryID returns a fresh entry id.
func NewEntryID() string { return newID(entryIDPrefix) }
