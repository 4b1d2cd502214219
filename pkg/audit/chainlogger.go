// Package audit provides a hash-chained log of ledger write operations.
// Each record commits to its predecessor, so any after-the-fact edit of
// the trail breaks verification.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// Record is one audit trail entry.
type Record struct {
	Timestamp    string `json:"timestamp"`
	PreviousHash string `json:"previous_hash"`
	Payload      string `json:"payload"`
	Hash         string `json:"hash"`
}

// ChainLogger appends records linked by SHA-256 hashes.
type ChainLogger struct {
	mu       sync.Mutex
	lastHash string
	records  []*Record
}

// NewChainLogger starts a chain anchored at the zero hash.
func NewChainLogger() *ChainLogger {
	return &ChainLogger{lastHash: strings.Repeat("0", 64)}
}

// Append adds a record for payload and returns it.
func (c *ChainLogger) Append(payload string) *Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := &Record{
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		PreviousHash: c.lastHash,
		Payload:      payload,
	}
	rec.Hash = recordHash(rec)
	c.lastHash = rec.Hash
	c.records = append(c.records, rec)
	return rec
}

// Records returns a snapshot of the trail.
func (c *ChainLogger) Records() []*Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Record, len(c.records))
	copy(out, c.records)
	return out
}

// Verify reports whether records form an unbroken, untampered chain.
func Verify(records []*Record) bool {
	for i, rec := range records {
		if i > 0 && rec.PreviousHash != records[i-1].Hash {
			return false
		}
		if recordHash(rec) != rec.Hash {
			return false
		}
	}
	return true
}

func recordHash(rec *Record) string {
	sum := sha256.Sum256([]byte(rec.PreviousHash + "|" + rec.Timestamp + "|" + rec.Payload))
	return hex.EncodeToString(sum[:])
}
