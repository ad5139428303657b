package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/config"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/repository"
	"github.com/spec-kit/identity-service/internal/token"
)

// DefaultRole is granted to every account at registration.
const DefaultRole = "User"

// Failure kinds surfaced by the identity flows. Unknown email, wrong
// password, and rate-limited attempts all collapse into
// ErrInvalidCredentials so responses carry nothing an attacker could use to
// enumerate accounts.
var (
	ErrInvalidCredentials  = errors.New("invalid_credentials")
	ErrAccountNotPermitted = errors.New("account_not_permitted")
	ErrEmailTaken          = errors.New("email_already_registered")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrWeakPassword        = errors.New("weak_password")
)

// CredentialVerifier validates submitted credentials and resolves the
// identity's roles and persisted claims. All three methods are read-only
// from the caller's perspective.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*domain.User, error)
	RolesOf(ctx context.Context, user *domain.User) ([]string, error)
	ClaimsOf(ctx context.Context, user *domain.User) ([]domain.Claim, error)
}

// IdentityService coordinates registration and login flows and implements
// CredentialVerifier over the Postgres-backed user store.
type IdentityService struct {
	users      repository.UserRepository
	limiter    *LoginLimiter
	dispatcher events.Dispatcher
	issuer     *token.Issuer
	bcryptCost int
	now        func() time.Time
}

// Dependencies encapsulates collaborator requirements for the service.
type Dependencies struct {
	UserRepo   repository.UserRepository
	Limiter    *LoginLimiter
	Dispatcher events.Dispatcher
}

// NewIdentityService builds the service.
func NewIdentityService(cfg config.Config, deps Dependencies) *IdentityService {
	return &IdentityService{
		users:      deps.UserRepo,
		limiter:    deps.Limiter,
		dispatcher: deps.Dispatcher,
		issuer:     token.NewIssuer(token.SettingsFromConfig(cfg.Auth)),
		bcryptCost: cfg.Auth.BcryptCost,
		now:        time.Now,
	}
}

// Register creates a new account and immediately issues a token for it, so
// registration and login converge on the same issuance path. A single
// create attempt: store-level failures return without a token and without
// retries.
func (s *IdentityService) Register(ctx context.Context, email, password string) (token.Issued, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return token.Issued{}, ErrInvalidEmail
	}
	if len(password) < auth.MinPasswordLength {
		return token.Issued{}, ErrWeakPassword
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return token.Issued{}, ErrEmailTaken
	} else if err != pgx.ErrNoRows {
		return token.Issued{}, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return token.Issued{}, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return token.Issued{}, err
	}
	if err := s.users.AddRole(ctx, user.ID, DefaultRole); err != nil {
		return token.Issued{}, err
	}

	issued, err := s.issueFor(ctx, user)
	if err != nil {
		return token.Issued{}, err
	}

	s.publish(ctx, events.EventUserRegistered, email, user.ID, nil)
	return issued, nil
}

// Login verifies credentials and issues a token on success. Failure kinds
// pass through to the boundary unchanged; there is no lockout counting or
// backoff here beyond the verifier's internal limiter.
func (s *IdentityService) Login(ctx context.Context, email, password string) (token.Issued, error) {
	user, err := s.Verify(ctx, email, password)
	if err != nil {
		s.publish(ctx, events.EventLoginFailed, email, "", events.LoginFailedPayload{Reason: err.Error()})
		return token.Issued{}, err
	}

	issued, err := s.issueFor(ctx, user)
	if err != nil {
		return token.Issued{}, err
	}

	s.publish(ctx, events.EventUserLoggedIn, user.Email, user.ID, nil)
	return issued, nil
}

// Verify implements the credential check of CredentialVerifier.
func (s *IdentityService) Verify(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	if s.limiter.TooManyFailures(ctx, email) {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if err == pgx.ErrNoRows {
			s.limiter.RecordFailure(ctx, email)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		s.limiter.RecordFailure(ctx, email)
		return nil, ErrInvalidCredentials
	}

	if !user.CanSignIn() {
		return nil, ErrAccountNotPermitted
	}

	s.limiter.Reset(ctx, email)
	return user, nil
}

// RolesOf resolves the user's role memberships.
func (s *IdentityService) RolesOf(ctx context.Context, user *domain.User) ([]string, error) {
	return s.users.ListRoles(ctx, user.ID)
}

// ClaimsOf resolves the user's persisted claims.
func (s *IdentityService) ClaimsOf(ctx context.Context, user *domain.User) ([]domain.Claim, error) {
	return s.users.ListClaims(ctx, user.ID)
}

// issueFor gathers roles and persisted claims and mints a token for the
// verified identity.
func (s *IdentityService) issueFor(ctx context.Context, user *domain.User) (token.Issued, error) {
	roles, err := s.RolesOf(ctx, user)
	if err != nil {
		return token.Issued{}, err
	}
	claims, err := s.ClaimsOf(ctx, user)
	if err != nil {
		return token.Issued{}, err
	}
	return s.issuer.Issue(user, roles, claims, s.now())
}

func (s *IdentityService) publish(ctx context.Context, eventType events.EventType, email, userID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Email:     email,
		UserID:    userID,
		Timestamp: s.now(),
		Payload:   payload,
	})
}

// Issuer exposes the underlying token issuer for middleware usage.
func (s *IdentityService) Issuer() *token.Issuer {
	return s.issuer
}
