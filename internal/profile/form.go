package profile

import "slices"

// ToForm projects a profile into form values. Scalars are copied verbatim and
// the nationality is the first entry of the list, if any.
func ToForm(p BasicProfile) FormValue {
	c := p.Clone()
	f := FormValue{
		Name:             c.Name,
		Image:            c.Image,
		Background:       c.Background,
		Description:      c.Description,
		Emoji:            c.Emoji,
		BirthDate:        c.BirthDate,
		URL:              c.URL,
		Gender:           c.Gender,
		HomeLocation:     c.HomeLocation,
		ResidenceCountry: c.ResidenceCountry,
	}
	if len(c.Nationalities) > 0 {
		f.Nationality = String(c.Nationalities[0])
	}
	return f
}

// FromForm merges form values into a copy of p. Every scalar present in f
// overwrites the profile, including empty strings. A non-empty nationality not
// already listed is prepended; existing nationalities are never removed.
// Otherwise the list, attributes outside the form included, is left exactly as
// stored. p is not modified.
func FromForm(p BasicProfile, f FormValue) BasicProfile {
	out := p.Clone()
	overlay(&out.Name, f.Name)
	overlay(&out.Image, f.Image)
	overlay(&out.Background, f.Background)
	overlay(&out.Description, f.Description)
	overlay(&out.Emoji, f.Emoji)
	overlay(&out.BirthDate, f.BirthDate)
	overlay(&out.URL, f.URL)
	overlay(&out.Gender, f.Gender)
	overlay(&out.HomeLocation, f.HomeLocation)
	overlay(&out.ResidenceCountry, f.ResidenceCountry)

	if f.Nationality != nil && *f.Nationality != "" && !slices.Contains(out.Nationalities, *f.Nationality) {
		out.Nationalities = append([]string{*f.Nationality}, out.Nationalities...)
	}
	return out
}

func overlay(dst **string, src *string) {
	if src != nil {
		v := *src
		*dst = &v
	}
}
