package jwks

import (
	"log/slog"

	"github.com/google/uuid"
)

// Service wraps the issuer with the configured current signing kid and a
// JWKS document cached at construction (the key registry is immutable for
// the process lifetime, so the document never changes).
type Service struct {
	issuer     *Issuer
	currentKid uuid.UUID
	document   JWKS
}

// NewService creates the signing service. A current kid with no registered
// key is tolerated: issuance falls back to an available key (see
// Issuer.IssueWithKid), but it is logged once here so operators notice.
func NewService(issuer *Issuer, currentKid uuid.UUID) *Service {
	if !issuer.HasKey(currentKid) {
		slog.Warn("Current signing kid has no registered key, issuance will fall back",
			"current_kid", currentKid)
	}
	return &Service{
		issuer:     issuer,
		currentKid: currentKid,
		document:   issuer.JWKS(),
	}
}

// Issue signs an access token for the subject user id with the current key.
func (s *Service) Issue(subject uuid.UUID) (string, error) {
	return s.issuer.IssueWithKid(s.currentKid, subject)
}

// JWKS returns the cached public verification key set.
func (s *Service) JWKS() JWKS {
	return s.document
}
