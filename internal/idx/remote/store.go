// Package remote reads and writes documents on an index node over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"selfid/internal/idx"
	"selfid/pkg/domain"
	"selfid/pkg/platform/sentinel"
	"selfid/pkg/requestcontext"
)

const documentsPath = "/idx/v1/documents/"

// TokenSource supplies the bearer token proving control of the writer's DID.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Store talks to an index node. Concurrent reads of the same document share
// one request.
type Store struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
	group   singleflight.Group
}

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) {
		if c != nil {
			s.client = c
		}
	}
}

func New(baseURL string, tokens TokenSource, opts ...Option) *Store {
	s := &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
		tokens:  tokens,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.client = &http.Client{Timeout: d}
		}
	}
}

func (s *Store) documentURL(id domain.DID, key domain.DocumentKey) string {
	return s.baseURL + documentsPath + url.PathEscape(id.String()) + "/" + url.PathEscape(key.String())
}

func (s *Store) Get(ctx context.Context, id domain.DID, key domain.DocumentKey) (*idx.Document, error) {
	target := s.documentURL(id, key)
	// The shared fetch outlives any single caller; the client timeout bounds it.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(target, func() (any, error) {
		return s.get(shared, target)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	doc := *res.Val.(*idx.Document)
	doc.Content = append(json.RawMessage(nil), doc.Content...)
	return &doc, nil
}

func (s *Store) get(ctx context.Context, target string) (*idx.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	s.setRequestID(ctx, req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return nil, err
	}
	var doc idx.Document
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

type putRequest struct {
	Content json.RawMessage `json:"content"`
}

func (s *Store) Put(ctx context.Context, doc idx.Document) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(putRequest{Content: doc.Content})
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.documentURL(doc.DID, doc.Key), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	s.setRequestID(ctx, req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	return statusError(resp)
}

func (s *Store) setRequestID(ctx context.Context, req *http.Request) {
	if id := requestcontext.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return sentinel.ErrUnauthenticated
	case resp.StatusCode == http.StatusForbidden:
		return sentinel.ErrForbidden
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: index node returned %d", sentinel.ErrUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("index node returned %d", resp.StatusCode)
	}
}
