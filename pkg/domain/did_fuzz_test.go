//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseDID tests that parsing never panics on arbitrary input
// and always returns either a valid DID or an error.
func FuzzParseDID(f *testing.F) {
	f.Add("")
	f.Add(sampleDID)
	f.Add("did:web:example.com")
	f.Add("did:key:")
	f.Add("'; DROP TABLE documents;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add(sampleDID + "\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseDID(input)

		if err == nil {
			roundTrip, err2 := ParseDID(id.String())
			if err2 != nil {
				t.Errorf("Valid DID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("Round-trip changed DID value")
			}
			if id.Method() == "" {
				t.Error("Valid DID has empty method")
			}
		}

		if !utf8.ValidString(input) && err == nil {
			t.Error("Non-UTF8 input was accepted")
		}
	})
}
