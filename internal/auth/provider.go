package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"selfid/internal/did"
	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
	"selfid/pkg/platform/sentinel"
)

// State is the observable authentication state of the viewer.
type State string

const (
	StateUnauthenticated State = "UNAUTHENTICATED"
	StateLoading         State = "LOADING"
	StateConfirmed       State = "CONFIRMED"
	StateFailed          State = "FAILED"
)

// Status is a snapshot of the provider. DID is only set when CONFIRMED.
type Status struct {
	State State      `json:"state"`
	DID   domain.DID `json:"did,omitempty"`
}

// tokens are refreshed when they would expire within this window
const tokenRefreshSkew = 30 * time.Second

// KeyringProvider authenticates the viewer with the primary key of a keyring.
// Login proves control of the key by issuing and verifying a DID-signed
// token; the token is then presented on index writes.
type KeyringProvider struct {
	keyring *did.Keyring
	tokens  *TokenService
	logger  *slog.Logger

	mu        sync.Mutex
	status    Status
	token     string
	expiresAt time.Time
	subs      map[int]func(Status)
	nextSub   int
}

func NewKeyringProvider(keyring *did.Keyring, tokens *TokenService, logger *slog.Logger) *KeyringProvider {
	return &KeyringProvider{
		keyring: keyring,
		tokens:  tokens,
		logger:  logger,
		status:  Status{State: StateUnauthenticated},
		subs:    make(map[int]func(Status)),
	}
}

func (p *KeyringProvider) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// KnownDIDs lists every identity the viewer controls.
func (p *KeyringProvider) KnownDIDs() []domain.DID {
	return p.keyring.DIDs()
}

// Subscribe registers fn for status changes. The returned func unsubscribes.
func (p *KeyringProvider) Subscribe(fn func(Status)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// Login authenticates the primary identity of the keyring.
func (p *KeyringProvider) Login(ctx context.Context) (domain.DID, error) {
	p.mu.Lock()
	if p.status.State == StateLoading {
		p.mu.Unlock()
		return "", dErrors.New(dErrors.CodeConflict, "login already in progress")
	}
	p.mu.Unlock()
	p.setStatus(Status{State: StateLoading})

	id, token, expiresAt, err := p.authenticate(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "authentication failed", "error", err)
		p.setStatus(Status{State: StateFailed})
		return "", err
	}

	p.mu.Lock()
	p.token = token
	p.expiresAt = expiresAt
	p.mu.Unlock()
	p.setStatus(Status{State: StateConfirmed, DID: id})
	p.logger.InfoContext(ctx, "authenticated", "did", id.String())
	return id, nil
}

func (p *KeyringProvider) authenticate(ctx context.Context) (domain.DID, string, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return "", "", time.Time{}, err
	}
	id, ok := p.keyring.Primary()
	if !ok {
		return "", "", time.Time{}, dErrors.New(dErrors.CodeUnauthorized, "no identity available in keyring")
	}
	token, expiresAt, err := p.issue(id)
	if err != nil {
		return "", "", time.Time{}, err
	}
	claims, err := p.tokens.Validate(token)
	if err != nil {
		return "", "", time.Time{}, err
	}
	if claims.Issuer() != id {
		return "", "", time.Time{}, dErrors.New(dErrors.CodeUnauthorized, "token issuer mismatch")
	}
	return id, token, expiresAt, nil
}

func (p *KeyringProvider) issue(id domain.DID) (string, time.Time, error) {
	signer, ok := p.keyring.Signer(id)
	if !ok {
		return "", time.Time{}, dErrors.New(dErrors.CodeUnauthorized, "no signing key for identity")
	}
	token, expiresAt, err := p.tokens.Issue(signer, id)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return token, expiresAt, nil
}

// Token returns a valid DID-signed token for the confirmed identity,
// reissuing it when it is about to expire.
func (p *KeyringProvider) Token(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status.State != StateConfirmed {
		return "", sentinel.ErrUnauthenticated
	}
	if time.Until(p.expiresAt) > tokenRefreshSkew {
		return p.token, nil
	}
	token, expiresAt, err := p.issue(p.status.DID)
	if err != nil {
		return "", err
	}
	p.token = token
	p.expiresAt = expiresAt
	return token, nil
}

// Logout drops the confirmed identity.
func (p *KeyringProvider) Logout() {
	p.mu.Lock()
	p.token = ""
	p.expiresAt = time.Time{}
	p.mu.Unlock()
	p.setStatus(Status{State: StateUnauthenticated})
}

func (p *KeyringProvider) setStatus(s Status) {
	p.mu.Lock()
	p.status = s
	subs := make([]func(Status), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}
