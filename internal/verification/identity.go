package verification

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/pscheid92/planverify/internal/domain"
)

// IdentityDimensions splits a submitter identity into the dimensions the duplicate detector tracks.
// Values are normalised; empty values are kept so the detector can skip them explicitly.
func IdentityDimensions(id domain.SubmitterIdentity) []domain.IdentityDimension {
	return []domain.IdentityDimension{
		{Name: domain.DimensionNetwork, Value: strings.TrimSpace(id.NetworkAddress)},
		{Name: domain.DimensionContact, Value: strings.ToLower(strings.TrimSpace(id.Contact))},
	}
}

// VoterKey is the stored, non-reversible identity of a voter.
func VoterKey(id domain.SubmitterIdentity) string {
	return digest(strings.TrimSpace(id.NetworkAddress))
}

// anonymousIdentity is the rate-limit identity of callers without a network address.
// They share one window per action, kept apart from every addressed caller.
const anonymousIdentity = "anonymous"

// rateIdentity is the identity a caller's rate-limit window is keyed on.
func rateIdentity(id domain.SubmitterIdentity) string {
	addr := strings.TrimSpace(id.NetworkAddress)
	if addr == "" {
		return anonymousIdentity
	}
	return "net:" + addr
}

func digest(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}
