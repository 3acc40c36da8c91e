// Package did derives did:key identifiers from Ed25519 seeds and keeps the
// keyring of identities the local viewer controls.
package did

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"

	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
)

const (
	keyPrefix = "did:key:"
	// base58btc multibase prefix
	multibaseBase58 = "z"
)

// ed25519-pub multicodec, varint encoded
var ed25519Multicodec = []byte{0xed, 0x01}

// ParseSeed decodes a hex encoded 32 byte Ed25519 seed.
func ParseSeed(s string) ([]byte, error) {
	seed, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "seed must be hex encoded")
	}
	if len(seed) != ed25519.SeedSize {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("seed must be %d bytes", ed25519.SeedSize))
	}
	return seed, nil
}

// FromPublicKey encodes an Ed25519 public key as a did:key identifier.
func FromPublicKey(pub ed25519.PublicKey) domain.DID {
	buf := make([]byte, 0, len(ed25519Multicodec)+len(pub))
	buf = append(buf, ed25519Multicodec...)
	buf = append(buf, pub...)
	return domain.DID(keyPrefix + multibaseBase58 + base58.Encode(buf))
}

// PublicKey resolves a did:key identifier to its Ed25519 public key.
func PublicKey(id domain.DID) (ed25519.PublicKey, error) {
	encoded, ok := strings.CutPrefix(string(id), keyPrefix+multibaseBase58)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "only base58btc did:key identifiers are supported")
	}
	raw := base58.Decode(encoded)
	if len(raw) != len(ed25519Multicodec)+ed25519.PublicKeySize || !bytes.HasPrefix(raw, ed25519Multicodec) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "did:key is not an ed25519 key")
	}
	return ed25519.PublicKey(raw[len(ed25519Multicodec):]), nil
}

// FromSeed derives the private key and DID controlled by seed.
func FromSeed(seed []byte) (ed25519.PrivateKey, domain.DID, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("seed must be %d bytes", ed25519.SeedSize))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv, FromPublicKey(priv.Public().(ed25519.PublicKey)), nil
}
