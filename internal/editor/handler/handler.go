// Package handler serves the editor API used by the browser UI: edit
// sessions, their modal forms, and read access to profiles.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"selfid/internal/auth"
	"selfid/internal/editor"
	"selfid/internal/platform/metrics"
	"selfid/internal/platform/middleware"
	"selfid/internal/profile"
	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
	"selfid/pkg/platform/httputil"
)

// Wallet lists the identities the local viewer controls.
type Wallet interface {
	KnownDIDs() []domain.DID
	Status() auth.Status
}

// Handler handles editor endpoints.
type Handler struct {
	deps    editor.Deps
	wallet  Wallet
	logger  *slog.Logger
	metrics *metrics.Metrics

	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	id      string
	session *editor.Session

	// lastSeen is guarded by Handler.mu.
	lastSeen time.Time

	mu            sync.Mutex
	viewed        domain.DID
	viewedProfile *profile.BasicProfile
	lastSave      editor.SaveStatus
}

// Option configures a Handler.
type Option func(*Handler)

// WithIdleTTL sets how long a session may go untouched before Sweep closes
// it. Zero keeps sessions until they are deleted.
func WithIdleTTL(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.idleTTL = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

func New(deps editor.Deps, wallet Wallet, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		deps:     deps,
		wallet:   wallet,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register registers the editor routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	apiRouter := chi.NewRouter()
	apiRouter.Use(middleware.Recovery(h.logger))
	apiRouter.Use(middleware.RequestID)
	apiRouter.Use(middleware.Logger(h.logger))
	apiRouter.Use(middleware.Timeout(30 * time.Second))
	apiRouter.Use(middleware.ContentTypeJSON)
	apiRouter.Use(middleware.LatencyMiddleware(h.metrics))

	apiRouter.Post("/editor/sessions", h.handleCreateSession)
	apiRouter.Route("/editor/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleDeleteSession)
		r.Put("/viewed", h.handleSetViewed)
		r.Post("/edit", h.handleEdit)
		r.Put("/form", h.handleSetForm)
		r.Post("/submit", h.handleSubmit)
		r.Post("/close", h.handleCloseModal)
	})
	apiRouter.Get("/profiles/{did}", h.handleGetProfile)
	apiRouter.Get("/identities", h.handleIdentities)

	r.Mount("/api/v1", apiRouter)
}

// Close ends every open session, cancelling their in-flight work.
func (h *Handler) Close() {
	h.mu.Lock()
	entries := make([]*sessionEntry, 0, len(h.sessions))
	for id, e := range h.sessions {
		entries = append(entries, e)
		delete(h.sessions, id)
	}
	h.mu.Unlock()

	for _, e := range entries {
		e.session.Close()
	}
}

// Sweep closes sessions idle for longer than the idle TTL and returns how
// many it closed.
func (h *Handler) Sweep() int {
	if h.idleTTL <= 0 {
		return 0
	}
	cutoff := h.now().Add(-h.idleTTL)

	h.mu.Lock()
	var idle []*sessionEntry
	for id, e := range h.sessions {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e)
			delete(h.sessions, id)
		}
	}
	h.mu.Unlock()

	for _, e := range idle {
		e.session.Close()
		h.logger.Info("editor session expired", "session_id", e.id)
	}
	return len(idle)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (h *Handler) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Sweep()
		}
	}
}

type viewedRequest struct {
	Viewed string `json:"viewed"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req viewedRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	sanitize(&req)
	viewed, err := domain.ParseDID(req.Viewed)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entry := &sessionEntry{id: uuid.NewString(), viewed: viewed, lastSeen: h.now()}
	entry.session = editor.NewSession(
		// Sessions outlive the request that created them.
		context.WithoutCancel(r.Context()),
		h.deps,
		viewed,
		h.wallet.KnownDIDs(),
		entry.setViewedProfile,
	)

	h.mu.Lock()
	h.sessions[entry.id] = entry
	h.mu.Unlock()

	h.logger.InfoContext(r.Context(), "editor session created",
		"session_id", entry.id,
		"viewed", viewed.String(),
		"request_id", middleware.GetRequestID(r.Context()),
	)
	httputil.WriteJSON(w, http.StatusCreated, entry.view())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry.view())
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mu.Lock()
	entry, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "session not found"))
		return
	}
	entry.session.Close()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetViewed(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req viewedRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	sanitize(&req)
	viewed, err := domain.ParseDID(req.Viewed)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entry.mu.Lock()
	if entry.viewed != viewed {
		entry.viewed = viewed
		entry.viewedProfile = nil
	}
	entry.lastSave = editor.SavePending
	entry.mu.Unlock()

	entry.session.SetViewed(viewed, h.wallet.KnownDIDs())
	httputil.WriteJSON(w, http.StatusOK, entry.view())
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	entry.session.RequestEdit()
	httputil.WriteJSON(w, http.StatusAccepted, entry.view())
}

func (h *Handler) handleSetForm(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	modal := entry.session.Modal()
	if modal == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "no profile edit in progress"))
		return
	}

	var form profile.FormValue
	if err := httputil.DecodeJSON(r, &form); err != nil {
		httputil.WriteError(w, err)
		return
	}
	sanitize(&form)
	if err := modal.SetValue(form); err != nil {
		h.writeModalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry.view())
}

// handleSubmit saves the form. A failed save is reported through the view's
// saveStatus rather than an error status, since the modal stays usable.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	modal := entry.session.Modal()
	if modal == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "no profile edit in progress"))
		return
	}

	err := modal.Submit(r.Context())
	if errors.Is(err, editor.ErrFormLocked) || errors.Is(err, editor.ErrModalClosed) {
		h.writeModalError(w, r, err)
		return
	}
	entry.mu.Lock()
	entry.lastSave = modal.Status()
	entry.mu.Unlock()
	httputil.WriteJSON(w, http.StatusOK, entry.view())
}

func (h *Handler) handleCloseModal(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := entry.session.CloseModal(); err != nil {
		h.writeModalError(w, r, err)
		return
	}
	entry.mu.Lock()
	entry.lastSave = editor.SavePending
	entry.mu.Unlock()
	httputil.WriteJSON(w, http.StatusOK, entry.view())
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseDID(chi.URLParam(r, "did"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.deps.Profiles.Load(ctx, id)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to load profile",
				"did", id.String(),
				"error", err,
				"request_id", middleware.GetRequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	if p == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "profile not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

type identitiesResponse struct {
	Identities []domain.DID `json:"identities"`
	Auth       auth.Status  `json:"auth"`
}

func (h *Handler) handleIdentities(w http.ResponseWriter, r *http.Request) {
	ids := h.wallet.KnownDIDs()
	if ids == nil {
		ids = []domain.DID{}
	}
	httputil.WriteJSON(w, http.StatusOK, identitiesResponse{
		Identities: ids,
		Auth:       h.wallet.Status(),
	})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*sessionEntry, bool) {
	h.mu.Lock()
	entry, ok := h.sessions[chi.URLParam(r, "id")]
	if ok {
		entry.lastSeen = h.now()
	}
	h.mu.Unlock()
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "session not found"))
		return nil, false
	}
	return entry, true
}

func (h *Handler) writeModalError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, editor.ErrFormLocked):
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeConflict, "profile is being saved"))
	case errors.Is(err, editor.ErrModalClosed):
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeConflict, "no profile edit in progress"))
	default:
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(r.Context(), "profile edit failed",
				"error", err,
				"request_id", middleware.GetRequestID(r.Context()),
			)
		}
		httputil.WriteError(w, err)
	}
}
