package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"selfid/internal/platform/metrics"
	"selfid/internal/profile"
)

var (
	ErrFormLocked  = errors.New("form is locked while saving")
	ErrModalClosed = errors.New("modal is closed")
)

// SaveStatus is the progress of the last submission.
type SaveStatus int

const (
	SavePending SaveStatus = iota
	SaveSaving
	SaveFailed
	SaveDone
)

func (s SaveStatus) String() string {
	switch s {
	case SaveSaving:
		return "saving"
	case SaveFailed:
		return "failed"
	case SaveDone:
		return "done"
	default:
		return "pending"
	}
}

// Message is the banner text shown for the status.
func (s SaveStatus) Message() string {
	switch s {
	case SaveSaving:
		return "Saving profile..."
	case SaveFailed:
		return "Failed to save profile"
	case SaveDone:
		return "Profile successfully saved!"
	default:
		return ""
	}
}

type modalDeps struct {
	save      func(ctx context.Context, p profile.BasicProfile) error
	onClose   func(p *profile.BasicProfile)
	onFailure func(ctx context.Context, err error)
	metrics   *metrics.Metrics
}

// Modal holds the form for one edit of a profile.
type Modal struct {
	deps     modalDeps
	original profile.BasicProfile

	mu     sync.Mutex
	form   profile.FormValue
	status SaveStatus
	closed bool
}

func newModal(p profile.BasicProfile, deps modalDeps) *Modal {
	original := p.Clone()
	return &Modal{
		deps:     deps,
		original: original,
		form:     profile.ToForm(original),
	}
}

// Profile is the profile the modal was opened with.
func (m *Modal) Profile() profile.BasicProfile {
	return m.original.Clone()
}

func (m *Modal) Form() profile.FormValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.form
}

func (m *Modal) Status() SaveStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SetValue replaces the form contents. Invalid forms are rejected and leave
// the current value in place.
func (m *Modal) SetValue(f profile.FormValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkEditable(); err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}
	m.form = f
	return nil
}

// Submit reconciles the form with the original profile and saves it. On
// success the modal closes and the saved profile propagates; on failure the
// modal stays open with SaveFailed.
func (m *Modal) Submit(ctx context.Context) error {
	m.mu.Lock()
	if err := m.checkEditable(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.status = SaveSaving
	next := profile.FromForm(m.original, m.form)
	m.mu.Unlock()

	if err := m.deps.save(ctx, next); err != nil {
		m.mu.Lock()
		m.status = SaveFailed
		m.mu.Unlock()
		m.deps.metrics.IncrementProfileSave("failed")
		if m.deps.onFailure != nil {
			m.deps.onFailure(ctx, err)
		}
		return fmt.Errorf("saving profile: %w", err)
	}

	m.mu.Lock()
	m.status = SaveDone
	m.closed = true
	m.mu.Unlock()
	m.deps.metrics.IncrementProfileSave("saved")
	if m.deps.onClose != nil {
		m.deps.onClose(&next)
	}
	return nil
}

// Cancel closes the modal without saving.
func (m *Modal) Cancel() error {
	m.mu.Lock()
	if err := m.checkEditable(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.closed = true
	m.mu.Unlock()
	if m.deps.onClose != nil {
		m.deps.onClose(nil)
	}
	return nil
}

// Closed reports whether the modal was saved or cancelled.
func (m *Modal) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Modal) checkEditable() error {
	if m.closed {
		return ErrModalClosed
	}
	if m.status == SaveSaving {
		return ErrFormLocked
	}
	return nil
}
