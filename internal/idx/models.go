// Package idx is the identity index client: per-identity JSON documents keyed
// by schema name, read by anyone and written only by their controller.
package idx

import (
	"context"
	"encoding/json"
	"time"

	"selfid/pkg/domain"
)

// Document is one stored index record.
type Document struct {
	DID       domain.DID         `json:"did"`
	Key       domain.DocumentKey `json:"key"`
	Content   json.RawMessage    `json:"content"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Store persists documents. Get returns sentinel.ErrNotFound (possibly
// wrapped) when no document exists; unreachable backends return
// sentinel.ErrUnavailable.
type Store interface {
	Get(ctx context.Context, id domain.DID, key domain.DocumentKey) (*Document, error)
	Put(ctx context.Context, doc Document) error
}

// DocumentEvent announces a document write.
type DocumentEvent struct {
	ID         string             `json:"id"`
	DID        domain.DID         `json:"did"`
	Key        domain.DocumentKey `json:"key"`
	Content    json.RawMessage    `json:"content"`
	OccurredAt time.Time          `json:"occurredAt"`
	RequestID  string             `json:"requestId,omitempty"`
}

// Publisher delivers document events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event DocumentEvent) error
}
