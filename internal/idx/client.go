package idx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"selfid/internal/auth"
	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
	"selfid/pkg/platform/sentinel"
	"selfid/pkg/requestcontext"
)

// Viewer reports who is authenticated.
type Viewer interface {
	Status() auth.Status
}

// Client reads any identity's documents and writes the authenticated
// identity's documents.
type Client struct {
	store  Store
	viewer Viewer
	logger *slog.Logger
}

func NewClient(store Store, viewer Viewer, logger *slog.Logger) *Client {
	return &Client{store: store, viewer: viewer, logger: logger}
}

// Get returns the document content stored under key for id, or nil when the
// identity has no such document. An empty id reads the authenticated identity.
func (c *Client) Get(ctx context.Context, key domain.DocumentKey, id domain.DID) (json.RawMessage, error) {
	if !key.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unsupported document key")
	}
	if id.IsNil() {
		self, err := c.self()
		if err != nil {
			return nil, err
		}
		id = self
	} else if _, err := domain.ParseDID(id.String()); err != nil {
		return nil, err
	}

	doc, err := c.store.Get(ctx, id, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, c.translate(ctx, "get", err)
	}
	return doc.Content, nil
}

// Set replaces the authenticated identity's document under key. The value
// must be a JSON object.
func (c *Client) Set(ctx context.Context, key domain.DocumentKey, value json.RawMessage) error {
	if !key.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unsupported document key")
	}
	if !isJSONObject(value) {
		return dErrors.New(dErrors.CodeInvalidInput, "document content must be a JSON object")
	}
	self, err := c.self()
	if err != nil {
		return err
	}

	doc := Document{
		DID:       self,
		Key:       key,
		Content:   append(json.RawMessage(nil), value...),
		UpdatedAt: requestcontext.Now(ctx),
	}
	if err := c.store.Put(ctx, doc); err != nil {
		return c.translate(ctx, "set", err)
	}
	return nil
}

func (c *Client) self() (domain.DID, error) {
	status := c.viewer.Status()
	if status.State != auth.StateConfirmed || status.DID.IsNil() {
		return "", dErrors.Wrap(sentinel.ErrUnauthenticated, dErrors.CodeUnauthorized, "no authenticated identity")
	}
	return status.DID, nil
}

func (c *Client) translate(ctx context.Context, op string, err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "identity index unavailable")
	case errors.Is(err, sentinel.ErrForbidden):
		return dErrors.Wrap(err, dErrors.CodeForbidden, "identity does not control this document")
	case errors.Is(err, sentinel.ErrUnauthenticated):
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, "index rejected credentials")
	}
	c.logger.ErrorContext(ctx, "index operation failed",
		"op", op,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.Wrap(err, dErrors.CodeInternal, "identity index error")
}

func isJSONObject(v json.RawMessage) bool {
	trimmed := bytes.TrimSpace(v)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}
