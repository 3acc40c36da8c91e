package domain

import dErrors "selfid/pkg/domain-errors"

// DocumentKey names a document schema in the identity index.
// Invariant: the value must be one of the supported schema keys.
//
// Usage: construct via ParseDocumentKey at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type DocumentKey string

// Supported document keys. This system only reads and writes basic profiles.
const (
	DocumentKeyBasicProfile DocumentKey = "basicProfile"
)

// validDocumentKeys is the single source of truth for valid document keys.
var validDocumentKeys = map[DocumentKey]bool{
	DocumentKeyBasicProfile: true,
}

// ParseDocumentKey constructs a DocumentKey from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseDocumentKey(s string) (DocumentKey, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "document key cannot be empty")
	}
	k := DocumentKey(s)
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported document key")
	}
	return k, nil
}

// IsValid checks if the key is one of the supported schema keys.
func (k DocumentKey) IsValid() bool {
	return validDocumentKeys[k]
}

func (k DocumentKey) String() string {
	return string(k)
}
