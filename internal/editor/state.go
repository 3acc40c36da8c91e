// Package editor drives the profile edit flow: deciding whether the viewer
// may edit the viewed identity, authenticating on demand, loading the
// current profile, and handing it to an edit modal.
package editor

import (
	"selfid/internal/auth"
	"selfid/internal/profile"
	"selfid/pkg/domain"
)

// State is the edit session state: NotEditable or Editable.
type State interface {
	isState()
}

// NotEditable means the viewer does not control the viewed identity.
type NotEditable struct{}

// Editable means the viewer controls the viewed identity. ModalOpen implies
// Profile is set. Profile keeps the last known profile after the modal closes.
type Editable struct {
	Loading   bool
	ModalOpen bool
	Profile   *profile.BasicProfile
}

func (NotEditable) isState() {}
func (Editable) isState()    {}

// Result carries the outcome of an asynchronous step.
type Result[T any] struct {
	Value T
	Err   error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// Msg is an input to Reduce.
type Msg interface {
	isMsg()
}

// ViewedChanged reports the identity being viewed and the identities the viewer controls.
type ViewedChanged struct {
	Viewed domain.DID
	Owned  []domain.DID
}

// EditRequested is the user asking to edit, with the auth status at that moment.
type EditRequested struct {
	Auth auth.Status
}

type LoginResolved struct {
	Result Result[domain.DID]
}

// ProfileLoaded carries the fetched profile; a nil value means none exists yet.
type ProfileLoaded struct {
	Result Result[*profile.BasicProfile]
}

// ModalClosed reports the modal closing, with the saved profile if there was a save.
type ModalClosed struct {
	Profile *profile.BasicProfile
}

func (ViewedChanged) isMsg() {}
func (EditRequested) isMsg() {}
func (LoginResolved) isMsg() {}
func (ProfileLoaded) isMsg() {}
func (ModalClosed) isMsg()   {}

// Effect is work requested by Reduce and carried out by a Session.
type Effect interface {
	isEffect()
}

type Login struct{}

type FetchProfile struct {
	DID domain.DID
}

// Propagate hands a saved profile to the session owner.
type Propagate struct {
	Profile profile.BasicProfile
}

// Warn reports a recovered failure.
type Warn struct {
	Kind FailureKind
	Err  error
}

func (Login) isEffect()        {}
func (FetchProfile) isEffect() {}
func (Propagate) isEffect()    {}
func (Warn) isEffect()         {}

// FailureKind classifies recovered failures.
type FailureKind int

const (
	AuthenticationFailure FailureKind = iota + 1
	ProfileLoadFailure
	ProfileSaveFailure
)

func (k FailureKind) String() string {
	switch k {
	case AuthenticationFailure:
		return "authentication"
	case ProfileLoadFailure:
		return "profile_load"
	case ProfileSaveFailure:
		return "profile_save"
	default:
		return "unknown"
	}
}
