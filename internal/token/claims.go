package token

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/identity-service/internal/domain"
)

// JWT registered claim types used in assembled claim sets.
const (
	ClaimSubject   = "sub"
	ClaimEmail     = "email"
	ClaimTokenID   = "jti"
	ClaimNotBefore = "nbf"
	ClaimIssuedAt  = "iat"
)

// payload-level keys that are set from Settings rather than the claim set.
const (
	claimIssuer     = "iss"
	claimAudience   = "aud"
	claimExpiration = "exp"
)

// AssembleClaims builds the full claim sequence for a token: the user's
// persisted claims, the five mandatory identity claims, and one role claim
// per role. Duplicate types are preserved throughout.
//
// The jti value is a fresh random UUID on every call, so two assemblies from
// identical inputs never produce identical claim sets.
func AssembleClaims(user *domain.User, roles []string, persisted []domain.Claim, now time.Time) []domain.Claim {
	epoch := unixNearestSecond(now)

	claims := make([]domain.Claim, 0, len(persisted)+len(roles)+5)
	claims = append(claims, persisted...)
	claims = append(claims,
		domain.Claim{Type: ClaimSubject, Value: user.ID},
		domain.Claim{Type: ClaimEmail, Value: user.Email},
		domain.Claim{Type: ClaimTokenID, Value: uuid.NewString()},
		domain.Claim{Type: ClaimNotBefore, Value: strconv.FormatInt(epoch, 10)},
		domain.Claim{Type: ClaimIssuedAt, Value: strconv.FormatInt(epoch, 10)},
	)
	claims = append(claims, domain.RoleClaims(roles)...)
	return claims
}

// unixNearestSecond converts a timestamp to Unix seconds, rounding to the
// nearest whole second rather than truncating.
func unixNearestSecond(t time.Time) int64 {
	return t.Round(time.Second).Unix()
}

// numericClaimTypes are the timestamp claims that must be encoded as JSON
// numbers: JWT validators read them as NumericDate and reject strings.
var numericClaimTypes = map[string]bool{
	ClaimNotBefore: true,
	ClaimIssuedAt:  true,
}

// claimPayloadValue maps a claim onto its JSON payload representation. The
// claim sequence itself always carries string values; only the payload
// rendering differs for timestamp claims.
func claimPayloadValue(claim domain.Claim) any {
	if numericClaimTypes[claim.Type] {
		if epoch, err := strconv.ParseInt(claim.Value, 10, 64); err == nil {
			return epoch
		}
	}
	return claim.Value
}

// encodeClaims renders a claim sequence as a JSON-object payload. JSON
// objects cannot carry duplicate keys, so claims sharing a type collapse to
// an array under that key; decodeClaimValue reverses this. Single-valued
// types stay plain values.
func encodeClaims(claims []domain.Claim) map[string]any {
	encoded := make(map[string]any, len(claims))
	for _, claim := range claims {
		value := claimPayloadValue(claim)
		existing, ok := encoded[claim.Type]
		if !ok {
			encoded[claim.Type] = value
			continue
		}
		switch v := existing.(type) {
		case []any:
			encoded[claim.Type] = append(v, value)
		default:
			encoded[claim.Type] = []any{existing, value}
		}
	}
	return encoded
}

// decodeClaimValue flattens a decoded JSON claim value back into the pair
// sequence. Numeric claims (nbf, iat) come back from JSON as float64 and are
// rendered as integer-second strings.
func decodeClaimValue(claimType string, value any) []domain.Claim {
	switch v := value.(type) {
	case string:
		return []domain.Claim{{Type: claimType, Value: v}}
	case float64:
		return []domain.Claim{{Type: claimType, Value: strconv.FormatInt(int64(v), 10)}}
	case []any:
		claims := make([]domain.Claim, 0, len(v))
		for _, item := range v {
			claims = append(claims, decodeClaimValue(claimType, item)...)
		}
		return claims
	default:
		return nil
	}
}
