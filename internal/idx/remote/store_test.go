package remote_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfid/internal/auth"
	"selfid/internal/did"
	"selfid/internal/idx"
	idxhandler "selfid/internal/idx/handler"
	"selfid/internal/idx/remote"
	"selfid/internal/idx/store/memory"
	"selfid/pkg/domain"
	"selfid/pkg/platform/sentinel"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Token(context.Context) (string, error) {
	return s.token, s.err
}

func newNode(t *testing.T) (*httptest.Server, *auth.TokenService, *did.Keyring) {
	t.Helper()
	tokens := auth.NewTokenService("selfid-index", time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	idxhandler.New(memory.New(), logger, nil, auth.NewTokenServiceAdapter(tokens)).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, tokens, did.NewKeyring()
}

func TestRemoteStoreRoundTrip(t *testing.T) {
	srv, tokens, keyring := newNode(t)
	id, err := keyring.AddSeed(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)
	signer, _ := keyring.Signer(id)
	token, _, err := tokens.Issue(signer, id)
	require.NoError(t, err)

	store := remote.New(srv.URL, staticTokens{token: token})
	ctx := context.Background()

	_, err = store.Get(ctx, id, domain.DocumentKeyBasicProfile)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	err = store.Put(ctx, idx.Document{DID: id, Key: domain.DocumentKeyBasicProfile, Content: json.RawMessage(`{"name":"Bob"}`)})
	require.NoError(t, err)

	doc, err := store.Get(ctx, id, domain.DocumentKeyBasicProfile)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Bob"}`, string(doc.Content))
	assert.Equal(t, id, doc.DID)
}

func TestRemoteStoreWriteForOtherIdentityIsForbidden(t *testing.T) {
	srv, tokens, keyring := newNode(t)
	writer, _ := keyring.AddSeed(bytes.Repeat([]byte{1}, 32))
	victim, _ := keyring.AddSeed(bytes.Repeat([]byte{2}, 32))
	signer, _ := keyring.Signer(writer)
	token, _, err := tokens.Issue(signer, writer)
	require.NoError(t, err)

	store := remote.New(srv.URL, staticTokens{token: token})
	err = store.Put(context.Background(), idx.Document{DID: victim, Key: domain.DocumentKeyBasicProfile, Content: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, sentinel.ErrForbidden)
}

func TestRemoteStoreTokenErrorStopsWrite(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	store := remote.New(srv.URL, staticTokens{err: sentinel.ErrUnauthenticated})
	err := store.Put(context.Background(), idx.Document{DID: "did:test:1", Key: domain.DocumentKeyBasicProfile, Content: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, sentinel.ErrUnauthenticated)
	assert.Zero(t, calls.Load())
}

func TestRemoteStoreUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	store := remote.New(srv.URL, staticTokens{})
	_, err := store.Get(context.Background(), "did:test:1", domain.DocumentKeyBasicProfile)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)

	srv.Close()
	_, err = store.Get(context.Background(), "did:test:1", domain.DocumentKeyBasicProfile)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestRemoteStoreCollapsesConcurrentReads(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"did":"did:test:1","key":"basicProfile","content":{"name":"Bob"}}`))
	}))
	defer srv.Close()

	store := remote.New(srv.URL, staticTokens{})
	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Get(context.Background(), "did:test:1", domain.DocumentKeyBasicProfile)
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestRemoteStoreCancelledCallerDoesNotFailSharedRead(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"did":"did:test:1","key":"basicProfile","content":{"name":"Bob"}}`))
	}))
	defer srv.Close()
	store := remote.New(srv.URL, staticTokens{})

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := store.Get(leaderCtx, "did:test:1", domain.DocumentKeyBasicProfile)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	followerDoc := make(chan *idx.Document, 1)
	followerErr := make(chan error, 1)
	go func() {
		doc, err := store.Get(context.Background(), "did:test:1", domain.DocumentKeyBasicProfile)
		followerDoc <- doc
		followerErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	err := <-leaderErr
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, sentinel.ErrUnavailable)

	close(release)
	require.NoError(t, <-followerErr)
	doc := <-followerDoc
	assert.JSONEq(t, `{"name":"Bob"}`, string(doc.Content))
	assert.Equal(t, int32(1), calls.Load())
}
