package profile

import (
	"net/url"
	"time"
	"unicode/utf16"

	dErrors "selfid/pkg/domain-errors"
)

const (
	// maxEmojiUnits matches the two character limit of the emoji input,
	// counted in UTF-16 code units like a browser does.
	maxEmojiUnits = 2
	maxTextLength = 2048
	birthDateFmt  = "2006-01-02"
)

// Validate checks user entered values before they are reconciled into a profile.
func (f FormValue) Validate() error {
	if f.Emoji != nil && utf16Len(*f.Emoji) > maxEmojiUnits {
		return dErrors.New(dErrors.CodeInvalidInput, "emoji must be at most 2 characters")
	}
	if f.BirthDate != nil && *f.BirthDate != "" {
		if _, err := time.Parse(birthDateFmt, *f.BirthDate); err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, "birthDate must be YYYY-MM-DD")
		}
	}
	if f.URL != nil && *f.URL != "" {
		u, err := url.Parse(*f.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "url must be an absolute http(s) URL")
		}
	}
	for _, v := range []*string{f.Name, f.Image, f.Background, f.Description, f.Gender, f.HomeLocation, f.ResidenceCountry, f.Nationality} {
		if v != nil && len(*v) > maxTextLength {
			return dErrors.New(dErrors.CodeInvalidInput, "field value too long")
		}
	}
	return nil
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
