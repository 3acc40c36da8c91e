package did

import (
	"crypto/ed25519"
	"sync"

	"selfid/pkg/domain"
)

// Keyring holds the signing keys of every identity the viewer controls.
// The first key added is the primary account used for login.
type Keyring struct {
	mu    sync.RWMutex
	keys  map[domain.DID]ed25519.PrivateKey
	order []domain.DID
}

func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[domain.DID]ed25519.PrivateKey)}
}

// NewKeyringFromHex builds a keyring from hex encoded seeds.
func NewKeyringFromHex(seeds []string) (*Keyring, error) {
	k := NewKeyring()
	for _, s := range seeds {
		seed, err := ParseSeed(s)
		if err != nil {
			return nil, err
		}
		if _, err := k.AddSeed(seed); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// AddSeed derives and stores the key for seed. Adding a seed twice is a no-op.
func (k *Keyring) AddSeed(seed []byte) (domain.DID, error) {
	priv, id, err := FromSeed(seed)
	if err != nil {
		return "", err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.keys[id]; !ok {
		k.keys[id] = priv
		k.order = append(k.order, id)
	}
	return id, nil
}

// DIDs lists the known identities in insertion order.
func (k *Keyring) DIDs() []domain.DID {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]domain.DID(nil), k.order...)
}

// Primary returns the first identity added to the keyring.
func (k *Keyring) Primary() (domain.DID, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if len(k.order) == 0 {
		return "", false
	}
	return k.order[0], true
}

// Signer returns the private key for id.
func (k *Keyring) Signer(id domain.DID) (ed25519.PrivateKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	priv, ok := k.keys[id]
	return priv, ok
}
