package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"selfid/internal/idx"
	"selfid/pkg/domain"
	"selfid/pkg/platform/sentinel"
)

type docKey struct {
	did domain.DID
	key domain.DocumentKey
}

// InMemoryStore keeps documents in a map. It backs local development and
// serves as the read cache behind the index circuit breaker.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[docKey]idx.Document
}

func New() *InMemoryStore {
	return &InMemoryStore{docs: make(map[docKey]idx.Document)}
}

func (s *InMemoryStore) Get(_ context.Context, id domain.DID, key domain.DocumentKey) (*idx.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docKey{id, key}]
	if !ok {
		return nil, fmt.Errorf("document %s/%s: %w", id, key, sentinel.ErrNotFound)
	}
	doc.Content = append(json.RawMessage(nil), doc.Content...)
	return &doc, nil
}

func (s *InMemoryStore) Put(_ context.Context, doc idx.Document) error {
	doc.Content = append(json.RawMessage(nil), doc.Content...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[docKey{doc.DID, doc.Key}] = doc
	return nil
}

// Len reports how many documents are stored.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[docKey]idx.Document)
}
