package domain

import (
	"strings"

	dErrors "selfid/pkg/domain-errors"
)

// maxDIDLength bounds identifiers accepted at trust boundaries.
const maxDIDLength = 2048

// DID is a decentralized identifier such as "did:key:z6Mk...".
// Invariant: values built through ParseDID follow the did:<method>:<id> syntax.
//
// Usage: construct via ParseDID at trust boundaries; direct casting bypasses
// validation and is reserved for values produced by this module (keyring, tokens).
type DID string

// ParseDID constructs a DID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, oversized, or does
// not follow the did:<method>:<method-specific-id> syntax.
func ParseDID(s string) (DID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "did cannot be empty")
	}
	if len(s) > maxDIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "did is too long")
	}
	rest, ok := strings.CutPrefix(s, "did:")
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "did must start with did:")
	}
	method, id, ok := strings.Cut(rest, ":")
	if !ok || method == "" || id == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "did must be did:<method>:<id>")
	}
	for _, r := range method {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid did method")
		}
	}
	for _, r := range id {
		if !isIDChar(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid did identifier")
		}
	}
	if strings.HasSuffix(id, ":") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid did identifier")
	}
	return DID(s), nil
}

func isIDChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '-', r == '_', r == ':', r == '%':
		return true
	}
	return false
}

// Method returns the DID method ("key" for did:key:...).
func (d DID) Method() string {
	rest := strings.TrimPrefix(string(d), "did:")
	method, _, _ := strings.Cut(rest, ":")
	return method
}

func (d DID) String() string {
	return string(d)
}

// IsNil reports whether the DID is empty.
func (d DID) IsNil() bool {
	return d == ""
}

// ContainsDID reports whether target is one of dids.
func ContainsDID(dids []DID, target DID) bool {
	if target.IsNil() {
		return false
	}
	for _, d := range dids {
		if d == target {
			return true
		}
	}
	return false
}
