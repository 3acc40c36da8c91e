// Package handler serves the index node API: public document reads and
// writes authorized by a DID-signed bearer token.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"selfid/internal/idx"
	"selfid/internal/platform/metrics"
	"selfid/internal/platform/middleware"
	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
	"selfid/pkg/platform/httputil"
	"selfid/pkg/platform/sentinel"
	"selfid/pkg/requestcontext"
)

// Handler handles index node endpoints.
type Handler struct {
	store        idx.Store
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(store idx.Store, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		store:        store,
		logger:       logger,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the index routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	idxRouter := chi.NewRouter()
	idxRouter.Use(middleware.Recovery(h.logger))
	idxRouter.Use(middleware.RequestID)
	idxRouter.Use(middleware.RequestTime)
	idxRouter.Use(middleware.Logger(h.logger))
	idxRouter.Use(middleware.Timeout(10 * time.Second))
	idxRouter.Use(middleware.ContentTypeJSON)
	idxRouter.Use(middleware.LatencyMiddleware(h.metrics))
	idxRouter.Get("/documents/{did}/{key}", h.handleGetDocument)
	idxRouter.With(middleware.RequireAuth(h.jwtValidator, h.logger)).
		Put("/documents/{did}/{key}", h.handlePutDocument)

	r.Mount("/idx/v1", idxRouter)
}

type putDocumentRequest struct {
	Content json.RawMessage `json:"content"`
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, key, err := parsePath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	doc, err := h.store.Get(r.Context(), id, key)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, key, err := parsePath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// Only the controller of a DID may write its documents.
	if requestcontext.DID(ctx) != id {
		h.logger.WarnContext(ctx, "document write by non-controller",
			"did", id.String(),
			"issuer", requestcontext.DID(ctx).String(),
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "token issuer does not control this identity"))
		return
	}

	var req putDocumentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	var obj map[string]json.RawMessage
	if len(req.Content) == 0 || json.Unmarshal(req.Content, &obj) != nil || obj == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "content must be a JSON object"))
		return
	}

	doc := idx.Document{
		DID:       id,
		Key:       key,
		Content:   req.Content,
		UpdatedAt: requestcontext.Now(ctx),
	}
	if err := h.store.Put(ctx, doc); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func parsePath(r *http.Request) (domain.DID, domain.DocumentKey, error) {
	id, err := domain.ParseDID(chi.URLParam(r, "did"))
	if err != nil {
		return "", "", err
	}
	key, err := domain.ParseDocumentKey(chi.URLParam(r, "key"))
	if err != nil {
		return "", "", err
	}
	return id, key, nil
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "document not found"))
	case errors.Is(err, sentinel.ErrUnavailable):
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "document store unavailable"))
	default:
		ctx := r.Context()
		h.logger.ErrorContext(ctx, "document store failure",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "document store failure"))
	}
}
