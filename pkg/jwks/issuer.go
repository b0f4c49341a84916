package jwks

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// maxNameLen bounds the issuer and audience claim strings.
const maxNameLen = 50

var (
	// ErrInvalidIssuer is returned for an empty or over-long issuer string.
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience is returned for an empty or over-long audience string.
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrNoSigningKeys is returned when an issuer is constructed without keys.
	ErrNoSigningKeys = errors.New("no signing keys available")
)

// Issuer signs access tokens with Ed25519 keys held in an immutable
// registry keyed by kid. EdDSA is the only supported algorithm; one issuer
// instance never mixes algorithms. Safe for concurrent use.
type Issuer struct {
	iss  string
	aud  string
	ttl  time.Duration
	keys map[uuid.UUID]KeyPair
}

// NewIssuer validates the issuer and audience strings (non-empty, at most
// 50 characters) and the key registry. Construction fails with an error;
// callers decide whether that is fatal.
func NewIssuer(iss, aud string, ttl time.Duration, keys map[uuid.UUID]KeyPair) (*Issuer, error) {
	if err := ValidateIssuer(iss); err != nil {
		return nil, err
	}
	if err := ValidateAudience(aud); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, ErrNoSigningKeys
	}

	registry := make(map[uuid.UUID]KeyPair, len(keys))
	for kid, keyPair := range keys {
		registry[kid] = keyPair
	}

	return &Issuer{
		iss:  iss,
		aud:  aud,
		ttl:  ttl,
		keys: registry,
	}, nil
}

// ValidateIssuer checks the issuer claim string bounds.
func ValidateIssuer(iss string) error {
	if iss == "" || len(iss) > maxNameLen {
		return fmt.Errorf("%w: %q", ErrInvalidIssuer, iss)
	}
	return nil
}

// ValidateAudience checks the audience claim string bounds.
func ValidateAudience(aud string) error {
	if aud == "" || len(aud) > maxNameLen {
		return fmt.Errorf("%w: %q", ErrInvalidAudience, aud)
	}
	return nil
}

// TTL returns the configured access token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// HasKey reports whether a key is registered under the kid.
func (i *Issuer) HasKey(kid uuid.UUID) bool {
	_, ok := i.keys[kid]
	return ok
}

// IssueWithKid signs an access token for the subject user with the key
// registered under kid. When the kid is absent an arbitrary registered key
// is used instead: issuance keeps working through a key-rotation
// misconfiguration, at the cost of a Warn log. The JOSE header carries the
// kid of the key actually used.
func (i *Issuer) IssueWithKid(kid, subject uuid.UUID) (string, error) {
	keyPair, ok := i.keys[kid]
	if !ok {
		for fallbackKid, fallback := range i.keys {
			slog.Warn("Configured signing kid not found, falling back to available key",
				"requested_kid", kid, "fallback_kid", fallbackKid)
			keyPair = fallback
			break
		}
	}

	jti, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate token id: %w", err)
	}

	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Audience:  jwt.ClaimStrings{i.aud},
		Issuer:    i.iss,
		Subject:   subject.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        jti.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = keyPair.Kid.String()

	signed, err := token.SignedString(keyPair.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// JWKS returns the public half of every registered key pair.
func (i *Issuer) JWKS() JWKS {
	keys := make([]JWK, 0, len(i.keys))
	for _, keyPair := range i.keys {
		keys = append(keys, keyPair.ToJWK())
	}
	return JWKS{Keys: keys}
}

// ParseToken verifies a token the way a relying party holding the JWKS
// would: EdDSA only, verification key resolved from the kid header, issuer
// and audience checked. The service itself never consumes tokens; this is
// the verification side of the contract for in-process callers and tests.
func (i *Issuer) ParseToken(tokenStr string) (*jwt.Token, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kidHeader, _ := token.Header["kid"].(string)
		kid, err := uuid.Parse(kidHeader)
		if err != nil {
			return nil, fmt.Errorf("invalid kid header: %w", err)
		}

		keyPair, ok := i.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown kid: %s", kid)
		}
		return keyPair.PublicKey, nil
	}, jwt.WithIssuer(i.iss), jwt.WithAudience(i.aud))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return token, nil
}
