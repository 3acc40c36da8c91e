package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "selfid/pkg/domain-errors"
)

const sampleDID = "did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK"

// TestParseDID_SecurityInvariants validates the parsing rules applied at API
// entry points (viewed identity, index document paths).
func TestParseDID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		// Attack vectors
		{"SQL injection attempt", "did:key:'; DROP TABLE documents;--", true},
		{"Path traversal", "did:key:../../etc/passwd", true},
		{"Null byte injection", "did:key:z6Mk\x00abc", true},
		{"Oversized input", "did:key:" + strings.Repeat("a", 3000), true},
		{"Unicode zero-width space", "did:key:z6Mk\u200Babc", true},

		// Edge cases
		{"Empty string", "", true},
		{"Whitespace only", "   ", true},
		{"Missing prefix", "key:z6Mk", true},
		{"Missing identifier", "did:key:", true},
		{"Missing method", "did::z6Mk", true},
		{"Uppercase method", "did:KEY:z6Mk", true},
		{"Trailing colon", "did:web:example.com:", true},

		// Valid
		{"did:key", sampleDID, false},
		{"did:3 style", "did:3:kjzl6cwe1jw147", false},
		{"did:web with path", "did:web:example.com:user:alice", false},
		{"pct-encoded", "did:web:localhost%3A8443", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseDID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, id.String())
		})
	}
}

func TestDID_Method(t *testing.T) {
	assert.Equal(t, "key", DID(sampleDID).Method())
	assert.Equal(t, "web", DID("did:web:example.com").Method())
}

func TestContainsDID(t *testing.T) {
	owned := []DID{"did:key:a", "did:key:b"}

	assert.True(t, ContainsDID(owned, "did:key:b"))
	assert.False(t, ContainsDID(owned, "did:key:c"))
	assert.False(t, ContainsDID(owned, ""), "absent viewed identity is never owned")
	assert.False(t, ContainsDID(nil, "did:key:a"))
}

func TestParseDocumentKey(t *testing.T) {
	t.Run("accepts basic profile", func(t *testing.T) {
		k, err := ParseDocumentKey("basicProfile")
		require.NoError(t, err)
		assert.Equal(t, DocumentKeyBasicProfile, k)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ParseDocumentKey("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects unknown schema", func(t *testing.T) {
		_, err := ParseDocumentKey("cryptoAccounts")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
