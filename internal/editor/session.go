package editor

import (
	"context"
	"log/slog"
	"sync"

	"selfid/internal/auth"
	"selfid/internal/platform/bg"
	"selfid/internal/platform/metrics"
	"selfid/internal/profile"
	"selfid/pkg/domain"
)

// AuthProvider authenticates the viewer on demand.
type AuthProvider interface {
	Status() auth.Status
	Login(ctx context.Context) (domain.DID, error)
}

// ProfileStore reads and writes the authenticated identity's profile.
type ProfileStore interface {
	Load(ctx context.Context, id domain.DID) (*profile.BasicProfile, error)
	Save(ctx context.Context, p profile.BasicProfile) error
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Auth     AuthProvider
	Profiles ProfileStore
	Runner   bg.Runner
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Session runs the edit flow for one viewer looking at one identity.
//
// Transitions are serialized under mu. Login and fetch run on the Runner and
// report back through deliver; results from an earlier epoch are dropped.
type Session struct {
	deps      Deps
	onProfile func(profile.BasicProfile)
	parent    context.Context

	mu     sync.Mutex
	state  State
	epoch  uint64
	ctx    context.Context
	cancel context.CancelFunc
	modal  *Modal
	closed bool
}

// NewSession starts a session for viewed. owned lists the identities the
// viewer controls. onProfile, if set, receives every saved profile.
func NewSession(ctx context.Context, deps Deps, viewed domain.DID, owned []domain.DID, onProfile func(profile.BasicProfile)) *Session {
	if deps.Runner == nil {
		deps.Runner = bg.Async{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Session{
		deps:      deps,
		onProfile: onProfile,
		parent:    ctx,
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.state, _ = Reduce(NotEditable{}, ViewedChanged{Viewed: viewed, Owned: owned})
	deps.Metrics.IncrementSessionsActive()
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Modal returns the open modal, or nil when none is open.
func (s *Session) Modal() *Modal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modal
}

// SetViewed switches the viewed identity. Work started for the previous
// identity is cancelled and its results are ignored.
func (s *Session) SetViewed(viewed domain.DID, owned []domain.DID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cancel()
	s.epoch++
	s.ctx, s.cancel = context.WithCancel(s.parent)
	s.modal = nil
	s.state, _ = Reduce(s.state, ViewedChanged{Viewed: viewed, Owned: owned})
}

// RequestEdit asks to open the editor. It returns immediately; the modal
// opens once login and fetch have completed.
func (s *Session) RequestEdit() {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()
	s.deliver(epoch, EditRequested{Auth: s.deps.Auth.Status()})
}

// CloseModal dismisses the open modal without saving.
func (s *Session) CloseModal() error {
	m := s.Modal()
	if m == nil {
		return ErrModalClosed
	}
	return m.Cancel()
}

// Close cancels in-flight work. Later results are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	s.modal = nil
	s.mu.Unlock()
	s.deps.Metrics.DecrementSessionsActive()
}

func (s *Session) deliver(epoch uint64, msg Msg) {
	s.mu.Lock()
	if s.closed || epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	prev := s.state
	next, effects := Reduce(prev, msg)
	s.state = next
	s.syncModal(prev, next, epoch)
	ctx := s.ctx
	s.mu.Unlock()

	for _, eff := range effects {
		s.run(ctx, epoch, eff)
	}
}

// syncModal opens a modal on entering ModalOpen and drops it on leaving.
// Callers hold mu.
func (s *Session) syncModal(prev, next State, epoch uint64) {
	wasOpen := isModalOpen(prev)
	e, ok := next.(Editable)
	if !ok || !e.ModalOpen {
		s.modal = nil
		return
	}
	if wasOpen && s.modal != nil {
		return
	}
	s.modal = newModal(*e.Profile, modalDeps{
		save: s.deps.Profiles.Save,
		onClose: func(p *profile.BasicProfile) {
			s.deliver(epoch, ModalClosed{Profile: p})
		},
		onFailure: func(ctx context.Context, err error) {
			s.warn(ctx, ProfileSaveFailure, err)
		},
		metrics: s.deps.Metrics,
	})
}

func isModalOpen(st State) bool {
	e, ok := st.(Editable)
	return ok && e.ModalOpen
}

func (s *Session) run(ctx context.Context, epoch uint64, eff Effect) {
	switch e := eff.(type) {
	case Login:
		s.deps.Runner.Do(func() {
			id, err := s.deps.Auth.Login(ctx)
			if err != nil {
				s.deliver(epoch, LoginResolved{Result: Fail[domain.DID](err)})
				return
			}
			s.deliver(epoch, LoginResolved{Result: Ok(id)})
		})
	case FetchProfile:
		s.deps.Runner.Do(func() {
			p, err := s.deps.Profiles.Load(ctx, e.DID)
			if err != nil {
				s.deliver(epoch, ProfileLoaded{Result: Fail[*profile.BasicProfile](err)})
				return
			}
			s.deliver(epoch, ProfileLoaded{Result: Ok(p)})
		})
	case Propagate:
		if s.onProfile != nil {
			s.onProfile(e.Profile)
		}
	case Warn:
		s.warn(ctx, e.Kind, e.Err)
	}
}

func (s *Session) warn(ctx context.Context, kind FailureKind, err error) {
	s.deps.Logger.WarnContext(ctx, "profile editor failure",
		"kind", kind.String(),
		"error", err,
	)
	s.deps.Metrics.IncrementEditorFailure(kind.String())
}
