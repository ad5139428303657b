package domain

// RoleClaimType is the claim type used for role membership claims. A user
// with N roles yields N claims of this type, one per role.
const RoleClaimType = "role"

// Claim is a single (type, value) pair attached to a user or embedded in an
// issued token. Claim types are NOT unique: role claims in particular repeat
// the same type once per role, so claim sets are always sequences of pairs,
// never maps.
type Claim struct {
	Type  string
	Value string
}

// RoleClaims converts role names into role claims, preserving order and
// duplicates.
func RoleClaims(roles []string) []Claim {
	claims := make([]Claim, 0, len(roles))
	for _, role := range roles {
		claims = append(claims, Claim{Type: RoleClaimType, Value: role})
	}
	return claims
}
