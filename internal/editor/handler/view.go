package handler

import (
	"selfid/internal/editor"
	"selfid/internal/profile"
	"selfid/pkg/domain"
)

// sessionView is the JSON rendering of an edit session.
type sessionView struct {
	ID            string                `json:"id"`
	Viewed        domain.DID            `json:"viewed"`
	Editable      bool                  `json:"editable"`
	Loading       bool                  `json:"loading"`
	ModalOpen     bool                  `json:"modalOpen"`
	Profile       *profile.BasicProfile `json:"profile,omitempty"`
	ViewedProfile *profile.BasicProfile `json:"viewedProfile,omitempty"`
	Form          *profile.FormValue    `json:"form,omitempty"`
	SaveStatus    string                `json:"saveStatus"`
	SaveMessage   string                `json:"saveMessage,omitempty"`
}

func (e *sessionEntry) setViewedProfile(p profile.BasicProfile) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewedProfile = &p
}

func (e *sessionEntry) view() sessionView {
	e.mu.Lock()
	v := sessionView{
		ID:            e.id,
		Viewed:        e.viewed,
		ViewedProfile: e.viewedProfile,
	}
	status := e.lastSave
	e.mu.Unlock()

	if st, ok := e.session.State().(editor.Editable); ok {
		v.Editable = true
		v.Loading = st.Loading
		v.ModalOpen = st.ModalOpen
		v.Profile = st.Profile
	}
	if m := e.session.Modal(); m != nil {
		form := m.Form()
		v.Form = &form
		status = m.Status()
	}
	v.SaveStatus = status.String()
	v.SaveMessage = status.Message()
	return v
}
