package profile

import (
	"context"
	"encoding/json"

	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
)

// IndexClient reads and writes identity index documents.
type IndexClient interface {
	// Get returns the document stored under key for id, or nil if there is none.
	// An empty id reads the authenticated identity's document.
	Get(ctx context.Context, key domain.DocumentKey, id domain.DID) (json.RawMessage, error)
	// Set writes the authenticated identity's document under key.
	Set(ctx context.Context, key domain.DocumentKey, value json.RawMessage) error
}

// Repository types the basicProfile document of the index.
type Repository struct {
	client IndexClient
}

func NewRepository(client IndexClient) *Repository {
	return &Repository{client: client}
}

// Load returns the profile of id, or nil if the identity has none yet.
func (r *Repository) Load(ctx context.Context, id domain.DID) (*BasicProfile, error) {
	raw, err := r.client.Get(ctx, domain.DocumentKeyBasicProfile, id)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var p BasicProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored profile is malformed")
	}
	return &p, nil
}

// Save replaces the authenticated identity's profile.
func (r *Repository) Save(ctx context.Context, p BasicProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode profile")
	}
	return r.client.Set(ctx, domain.DocumentKeyBasicProfile, raw)
}
