package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"selfid/internal/auth"
	"selfid/internal/did"
	"selfid/internal/idx"
	"selfid/internal/idx/store/memory"
	"selfid/pkg/domain"
	"selfid/pkg/testutil"
)

type IndexHandlerSuite struct {
	suite.Suite
	store   *memory.InMemoryStore
	router  chi.Router
	tokens  *auth.TokenService
	keyring *did.Keyring
	owner   domain.DID
	other   domain.DID
}

func TestIndexHandlerSuite(t *testing.T) {
	suite.Run(t, new(IndexHandlerSuite))
}

func (s *IndexHandlerSuite) SetupTest() {
	s.store = memory.New()
	s.tokens = auth.NewTokenService("selfid-index", time.Hour)
	s.keyring = did.NewKeyring()
	var err error
	s.owner, err = s.keyring.AddSeed(bytes.Repeat([]byte{1}, 32))
	s.Require().NoError(err)
	s.other, err = s.keyring.AddSeed(bytes.Repeat([]byte{2}, 32))
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.store, logger, nil, auth.NewTokenServiceAdapter(s.tokens))
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *IndexHandlerSuite) tokenFor(id domain.DID) string {
	signer, ok := s.keyring.Signer(id)
	s.Require().True(ok)
	token, _, err := s.tokens.Issue(signer, id)
	s.Require().NoError(err)
	return token
}

func (s *IndexHandlerSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), method, path, body), token)
	return testutil.DoRequest(s.router, req)
}

func (s *IndexHandlerSuite) path(id domain.DID) string {
	return "/idx/v1/documents/" + id.String() + "/basicProfile"
}

func (s *IndexHandlerSuite) TestGetMissingDocument() {
	w := s.do(http.MethodGet, s.path(s.owner), "", nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.JSONEq(`{"error":"not_found","error_description":"document not found"}`, w.Body.String())
}

func (s *IndexHandlerSuite) TestGetRejectsBadPath() {
	w := s.do(http.MethodGet, "/idx/v1/documents/not-a-did/basicProfile", "", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/idx/v1/documents/"+s.owner.String()+"/cryptoAccounts", "", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *IndexHandlerSuite) TestOwnerWritesThenAnyoneReads() {
	body := map[string]any{"content": map[string]any{"name": "Bob"}}
	w := s.do(http.MethodPut, s.path(s.owner), s.tokenFor(s.owner), body)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, s.path(s.owner), "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	doc := testutil.UnmarshalResponse[idx.Document](s.T(), w)
	s.Equal(s.owner, doc.DID)
	s.JSONEq(`{"name":"Bob"}`, string(doc.Content))
	s.False(doc.UpdatedAt.IsZero())
}

func (s *IndexHandlerSuite) TestWriteRequiresToken() {
	body := map[string]any{"content": map[string]any{"name": "Bob"}}
	w := s.do(http.MethodPut, s.path(s.owner), "", body)
	testutil.AssertStatusAndError(s.T(), w, http.StatusUnauthorized, "unauthorized")
	s.Equal(0, s.store.Len())
}

func (s *IndexHandlerSuite) TestWriteByOtherIdentityIsForbidden() {
	body := map[string]any{"content": map[string]any{"name": "Mallory"}}
	w := s.do(http.MethodPut, s.path(s.owner), s.tokenFor(s.other), body)
	testutil.AssertStatusAndError(s.T(), w, http.StatusForbidden, "forbidden")
	s.Equal(0, s.store.Len())
}

func (s *IndexHandlerSuite) TestWriteRejectsNonObjectContent() {
	for _, content := range []any{"text", []int{1, 2}, nil} {
		w := s.do(http.MethodPut, s.path(s.owner), s.tokenFor(s.owner), map[string]any{"content": content})
		s.Equal(http.StatusBadRequest, w.Code)
	}
	_, err := s.store.Get(context.Background(), s.owner, domain.DocumentKeyBasicProfile)
	s.Error(err)
}
