package auth

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"selfid/internal/did"
	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
)

// Claims are the claims of a DID-signed access token. The issuer is the DID
// that signed the token; its did:key resolves to the verification key.
type Claims struct {
	jwt.RegisteredClaims
}

// Issuer returns the signing identity.
func (c *Claims) Issuer() domain.DID {
	return domain.DID(c.RegisteredClaims.Issuer)
}

// TokenService issues and validates DID-signed JWTs (EdDSA).
type TokenService struct {
	audience  string
	expiresIn time.Duration
}

func NewTokenService(audience string, expiresIn time.Duration) *TokenService {
	return &TokenService{
		audience:  audience,
		expiresIn: expiresIn,
	}
}

// Issue signs a token for issuer with its private key.
func (s *TokenService) Issue(signer ed25519.PrivateKey, issuer domain.DID) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.expiresIn)
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer.String(),
			Subject:   issuer.String(),
			Audience:  []string{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(signer)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate verifies a token against the key its issuer DID resolves to.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		claims, ok := token.Claims.(*Claims)
		if !ok {
			return nil, jwt.ErrTokenInvalidClaims
		}
		return did.PublicKey(claims.Issuer())
	},
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
