package editor

import (
	"errors"

	"selfid/internal/auth"
	"selfid/internal/profile"
	"selfid/pkg/domain"
)

var errNoIdentity = errors.New("login resolved without an identity")

// Reduce computes the next state and the effects to run for msg. It never
// blocks and never mutates its inputs.
func Reduce(s State, msg Msg) (State, []Effect) {
	switch m := msg.(type) {
	case ViewedChanged:
		if !domain.ContainsDID(m.Owned, m.Viewed) {
			return NotEditable{}, nil
		}
		return Editable{}, nil

	case EditRequested:
		e, ok := s.(Editable)
		if !ok || e.Loading {
			return s, nil
		}
		switch m.Auth.State {
		case auth.StateLoading:
			return s, nil
		case auth.StateConfirmed:
			return Editable{Loading: true}, []Effect{FetchProfile{DID: m.Auth.DID}}
		default:
			return Editable{Loading: true}, []Effect{Login{}}
		}

	case LoginResolved:
		e, ok := s.(Editable)
		if !ok || !e.Loading {
			return s, nil
		}
		if m.Result.Err != nil || m.Result.Value.IsNil() {
			err := m.Result.Err
			if err == nil {
				err = errNoIdentity
			}
			return Editable{}, []Effect{Warn{Kind: AuthenticationFailure, Err: err}}
		}
		return e, []Effect{FetchProfile{DID: m.Result.Value}}

	case ProfileLoaded:
		e, ok := s.(Editable)
		if !ok || !e.Loading {
			return s, nil
		}
		if m.Result.Err != nil {
			return Editable{}, []Effect{Warn{Kind: ProfileLoadFailure, Err: m.Result.Err}}
		}
		fetched := m.Result.Value
		if fetched == nil {
			fetched = &profile.BasicProfile{}
		}
		return Editable{ModalOpen: true, Profile: fetched}, nil

	case ModalClosed:
		e, ok := s.(Editable)
		if !ok {
			return s, nil
		}
		if m.Profile == nil {
			return Editable{Loading: e.Loading, Profile: e.Profile}, nil
		}
		saved := m.Profile.Clone()
		return Editable{Loading: e.Loading, Profile: &saved}, []Effect{Propagate{Profile: saved.Clone()}}
	}
	return s, nil
}
