package jwks

import (
	"crypto/ed25519"

	"github.com/google/uuid"
)

// JWKS is a JSON Web Key Set as defined in RFC 7517.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK is the public representation of one Ed25519 signing key
// (RFC 8037 OKP key type).
type JWK struct {
	// Key Type - "OKP" for Ed25519 keys
	Kty string `json:"kty"`

	// Public Key Use - "sig" for signature
	Use string `json:"use"`

	// Key ID
	Kid string `json:"kid"`

	// Algorithm - "EdDSA"
	Alg string `json:"alg"`

	// Curve - "Ed25519"
	Crv string `json:"crv"`

	// Raw public key, base64url encoded without padding
	X string `json:"x"`
}

// KeyPair is an Ed25519 signing key pair held by the issuer. Immutable for
// the process lifetime; the private half never leaves the package.
type KeyPair struct {
	Kid        uuid.UUID
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey

	// X is the base64url encoding of the raw public key, precomputed for
	// JWKS publication.
	X string
}

// ToJWK returns the public JWK for this key pair.
func (kp *KeyPair) ToJWK() JWK {
	return JWK{
		Kty: "OKP",
		Use: "sig",
		Kid: kp.Kid.String(),
		Alg: "EdDSA",
		Crv: "Ed25519",
		X:   kp.X,
	}
}
