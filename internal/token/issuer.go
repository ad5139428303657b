package token

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/identity-service/internal/config"
	"github.com/spec-kit/identity-service/internal/domain"
)

// Settings holds the process-wide token parameters. Loaded once at startup,
// validated by config.Validate, and immutable afterwards, which keeps the
// issuer safe for unlimited concurrent use.
type Settings struct {
	Secret   []byte
	Issuer   string
	Audience string
	Lifetime time.Duration
}

// SettingsFromConfig maps the auth configuration block into issuer settings.
// The secret's raw bytes are used as the HMAC key directly; no key
// derivation is applied.
func SettingsFromConfig(cfg config.AuthConfig) Settings {
	return Settings{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Lifetime: cfg.TokenLifetime(),
	}
}

// UserToken is the client-facing projection of the identity embedded in an
// issued token.
type UserToken struct {
	ID     string
	Email  string
	Claims []domain.Claim
}

// Issued summarizes a freshly minted token. ExpiresIn is the configured
// lifetime in whole seconds, not a countdown from the expiration instant.
type Issued struct {
	AccessToken string
	ExpiresIn   int64
	UserToken   UserToken
}

// Issuer mints and validates HS256-signed bearer tokens.
type Issuer struct {
	settings Settings
}

// NewIssuer builds an issuer from validated settings.
func NewIssuer(settings Settings) *Issuer {
	return &Issuer{settings: settings}
}

// Issue assembles the claim set for the user and signs a token valid from
// now until now plus the configured lifetime. The claim set is deterministic
// in (user, roles, persisted, settings) except for the jti and the
// timestamps, so repeated calls never produce byte-identical tokens.
func (i *Issuer) Issue(user *domain.User, roles []string, persisted []domain.Claim, now time.Time) (Issued, error) {
	claims := AssembleClaims(user, roles, persisted, now)
	expiresAt := now.Add(i.settings.Lifetime)

	payload := jwt.MapClaims(encodeClaims(claims))
	payload[claimIssuer] = i.settings.Issuer
	payload[claimAudience] = i.settings.Audience
	payload[claimExpiration] = jwt.NewNumericDate(expiresAt)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(i.settings.Secret)
	if err != nil {
		return Issued{}, fmt.Errorf("sign token: %w", err)
	}

	return Issued{
		AccessToken: signed,
		ExpiresIn:   int64(i.settings.Lifetime / time.Second),
		UserToken: UserToken{
			ID:     user.ID,
			Email:  user.Email,
			Claims: claims,
		},
	}, nil
}

// Parsed carries the identity recovered from a validated token.
type Parsed struct {
	Subject   string
	Email     string
	TokenID   string
	ExpiresAt time.Time
	Claims    []domain.Claim
}

// Parse verifies a compact token against the issuer's settings: HS256
// signature over the configured secret, issuer, audience, and expiry. On
// success it returns the embedded identity and the flattened claim
// sequence.
func (i *Issuer) Parse(tokenStr string) (*Parsed, error) {
	parsed, err := jwt.Parse(tokenStr,
		func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return i.settings.Secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.settings.Issuer),
		jwt.WithAudience(i.settings.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	payload, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}

	result := &Parsed{}
	if exp, err := payload.GetExpirationTime(); err == nil && exp != nil {
		result.ExpiresAt = exp.Time
	}

	for claimType, value := range payload {
		switch claimType {
		case claimIssuer, claimAudience, claimExpiration:
			continue
		}
		result.Claims = append(result.Claims, decodeClaimValue(claimType, value)...)
	}

	for _, claim := range result.Claims {
		switch claim.Type {
		case ClaimSubject:
			result.Subject = claim.Value
		case ClaimEmail:
			result.Email = claim.Value
		case ClaimTokenID:
			result.TokenID = claim.Value
		}
	}
	if result.Subject == "" {
		return nil, errors.New("token missing subject claim")
	}
	return result, nil
}
