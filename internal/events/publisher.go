// Package events defines the event contract the ledger emits after a
// durable commit, and the publisher interface transport implementations
// satisfy.
package events

import (
	"context"
	"time"
)

// TopicTransactionPosted carries one event per committed ledger
// transaction.
const TopicTransactionPosted = "ledger.transaction_posted"

// PostedEntry is one committed entry inside a TransactionPosted event.
// Amounts travel as minor-unit decimal strings, never floats.
type PostedEntry struct {
	EntryID   string `json:"entry_id"`
	AccountID string `json:"account_id"`
	Direction string `json:"direction"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

// TransactionPosted announces a committed ledger transaction. Consumers
// must treat it as at-most-once: the books are the source of truth, the
// event is a notification.
type TransactionPosted struct {
	TransactionID string        `json:"transaction_id"`
	Description   string        `json:"description"`
	ReferenceType string        `json:"reference_type,omitempty"`
	ReferenceID   string        `json:"reference_id,omitempty"`
	Entries       []PostedEntry `json:"entries"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// Publisher delivers events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
