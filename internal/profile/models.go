// Package profile models the basic profile document and its edit form.
package profile

import (
	"encoding/json"
	"slices"
)

// BasicProfile is the public profile document of an identity, stored in the
// identity index under the basicProfile key. Scalars are pointers so that an
// absent attribute and one explicitly cleared to "" stay distinct.
//
// Attributes this type does not model are kept in Extra and written back
// unchanged, as is an explicitly empty nationalities list.
type BasicProfile struct {
	Name             *string  `json:"name,omitempty"`
	Image            *string  `json:"image,omitempty"`
	Background       *string  `json:"background,omitempty"`
	Description      *string  `json:"description,omitempty"`
	Emoji            *string  `json:"emoji,omitempty"`
	BirthDate        *string  `json:"birthDate,omitempty"`
	URL              *string  `json:"url,omitempty"`
	Gender           *string  `json:"gender,omitempty"`
	HomeLocation     *string  `json:"homeLocation,omitempty"`
	ResidenceCountry *string  `json:"residenceCountry,omitempty"`
	Nationalities    []string `json:"nationalities,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// basicProfileFields has the fields and tags of BasicProfile but none of
// its methods.
type basicProfileFields BasicProfile

var knownAttributes = []string{
	"name", "image", "background", "description", "emoji", "birthDate",
	"url", "gender", "homeLocation", "residenceCountry", "nationalities",
}

func (p *BasicProfile) UnmarshalJSON(data []byte) error {
	var fields basicProfileFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownAttributes {
		delete(all, k)
	}
	*p = BasicProfile(fields)
	p.Extra = nil
	if len(all) > 0 {
		p.Extra = all
	}
	return nil
}

func (p BasicProfile) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(basicProfileFields(p))
	if err != nil {
		return nil, err
	}
	emptyList := p.Nationalities != nil && len(p.Nationalities) == 0
	if len(p.Extra) == 0 && !emptyList {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(p.Extra)+len(knownAttributes))
	for k, v := range p.Extra {
		if !slices.Contains(knownAttributes, k) {
			merged[k] = v
		}
	}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	if emptyList {
		merged["nationalities"] = json.RawMessage(`[]`)
	}
	return json.Marshal(merged)
}

// FormValue is the editable projection of a BasicProfile. The form edits a
// single nationality; the document keeps a list.
type FormValue struct {
	Name             *string `json:"name,omitempty"`
	Image            *string `json:"image,omitempty"`
	Background       *string `json:"background,omitempty"`
	Description      *string `json:"description,omitempty"`
	Emoji            *string `json:"emoji,omitempty"`
	BirthDate        *string `json:"birthDate,omitempty"`
	URL              *string `json:"url,omitempty"`
	Gender           *string `json:"gender,omitempty"`
	HomeLocation     *string `json:"homeLocation,omitempty"`
	ResidenceCountry *string `json:"residenceCountry,omitempty"`
	Nationality      *string `json:"nationality,omitempty"`
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}

// Clone returns a deep copy of p.
func (p BasicProfile) Clone() BasicProfile {
	out := p
	out.Name = clonePtr(p.Name)
	out.Image = clonePtr(p.Image)
	out.Background = clonePtr(p.Background)
	out.Description = clonePtr(p.Description)
	out.Emoji = clonePtr(p.Emoji)
	out.BirthDate = clonePtr(p.BirthDate)
	out.URL = clonePtr(p.URL)
	out.Gender = clonePtr(p.Gender)
	out.HomeLocation = clonePtr(p.HomeLocation)
	out.ResidenceCountry = clonePtr(p.ResidenceCountry)
	out.Nationalities = slices.Clone(p.Nationalities)
	if p.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = slices.Clone(v)
		}
	}
	return out
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
