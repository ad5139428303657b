package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/identity-service/internal/api/http"
	"github.com/spec-kit/identity-service/internal/api/http/handlers"
	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/config"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/observability"
	"github.com/spec-kit/identity-service/internal/persistence"
	"github.com/spec-kit/identity-service/internal/repository"
	"github.com/spec-kit/identity-service/internal/service"
)

type memRepo struct {
	users  map[string]*domain.User
	roles  map[string][]string
	claims map[string][]domain.Claim
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:  make(map[string]*domain.User),
		roles:  make(map[string][]string),
		claims: make(map[string][]domain.Claim),
	}
}

var _ repository.UserRepository = (*memRepo)(nil)

func (r *memRepo) Create(_ context.Context, user *domain.User) error {
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *memRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *memRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memRepo) AddRole(_ context.Context, userID, role string) error {
	r.roles[userID] = append(r.roles[userID], role)
	return nil
}

func (r *memRepo) ListRoles(_ context.Context, userID string) ([]string, error) {
	return r.roles[userID], nil
}

func (r *memRepo) AddClaim(_ context.Context, userID string, claim domain.Claim) error {
	r.claims[userID] = append(r.claims[userID], claim)
	return nil
}

func (r *memRepo) ListClaims(_ context.Context, userID string) ([]domain.Claim, error) {
	return r.claims[userID], nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	cfg := config.Config{
		App: config.AppConfig{Name: "identity-service", Version: "test"},
		Auth: config.AuthConfig{
			JWTSecret:          "0123456789abcdef0123456789abcdef",
			Issuer:             "identity-service",
			Audience:           "identity-service",
			TokenLifetimeHours: 2,
			BcryptCost:         4,
		},
	}

	repo := newMemRepo()
	identityService := service.NewIdentityService(cfg, service.Dependencies{UserRepo: repo})
	authMiddleware := auth.NewMiddleware(identityService.Issuer(), repo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, &persistence.Postgres{}, &persistence.Redis{}),
		Auth:           handlers.NewAuthHandler(identityService),
		AuthMiddleware: authMiddleware,
	})
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body map[string]string) (*http.Response, []byte) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestRegisterEndpoint(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	resp, raw := postJSON(t, app, "/api/identity/register", map[string]string{
		"email":    "a@b.com",
		"password": "correct horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		UserToken   struct {
			ID     string `json:"id"`
			Email  string `json:"email"`
			Claims []struct {
				Type  string `json:"type"`
				Value string `json:"value"`
			} `json:"claims"`
		} `json:"user_token"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.NotEmpty(t, body.AccessToken)
	require.EqualValues(t, 7200, body.ExpiresIn)
	require.NotEmpty(t, body.UserToken.ID)
	require.Equal(t, "a@b.com", body.UserToken.Email)

	foundRole := false
	for _, claim := range body.UserToken.Claims {
		if claim.Type == domain.RoleClaimType && claim.Value == service.DefaultRole {
			foundRole = true
		}
	}
	require.True(t, foundRole)
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	resp, _ := postJSON(t, app, "/api/identity/register", map[string]string{"email": "a@b.com"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postJSON(t, app, "/api/identity/register", map[string]string{
		"email":    "a@b.com",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginEndpoint(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	resp, _ := postJSON(t, app, "/api/identity/register", map[string]string{
		"email":    "a@b.com",
		"password": "correct horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := postJSON(t, app, "/api/identity/login", map[string]string{
		"email":    "a@b.com",
		"password": "correct horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(raw), "access_token")
}

func TestLoginFailureIsGeneric(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	resp, _ := postJSON(t, app, "/api/identity/register", map[string]string{
		"email":    "a@b.com",
		"password": "correct horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	unknownResp, unknownBody := postJSON(t, app, "/api/identity/login", map[string]string{
		"email":    "unknown@x.com",
		"password": "pw",
	})
	wrongResp, wrongBody := postJSON(t, app, "/api/identity/login", map[string]string{
		"email":    "a@b.com",
		"password": "battery staple",
	})

	// Unknown account and wrong password must be indistinguishable.
	require.Equal(t, http.StatusBadRequest, unknownResp.StatusCode)
	require.Equal(t, http.StatusBadRequest, wrongResp.StatusCode)
	require.JSONEq(t, string(unknownBody), string(wrongBody))
}

func TestMeEndpoint(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	_, raw := postJSON(t, app, "/api/identity/register", map[string]string{
		"email":    "a@b.com",
		"password": "correct horse",
	})
	var registered struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(raw, &registered))

	req := httptest.NewRequest(http.MethodGet, "/api/identity/me", nil)
	req.Header.Set("Authorization", "Bearer "+registered.AccessToken)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "a@b.com")
}

// deadlineRepo records whether repository calls receive a context with a
// deadline attached.
type deadlineRepo struct {
	*memRepo
	sawDeadline bool
}

func (r *deadlineRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	_, r.sawDeadline = ctx.Deadline()
	return r.memRepo.GetByEmail(ctx, email)
}

func TestServiceCallsCarryRequestDeadline(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		App: config.AppConfig{Name: "identity-service", Version: "test"},
		Auth: config.AuthConfig{
			JWTSecret:          "0123456789abcdef0123456789abcdef",
			Issuer:             "identity-service",
			Audience:           "identity-service",
			TokenLifetimeHours: 2,
			BcryptCost:         4,
		},
	}

	repo := &deadlineRepo{memRepo: newMemRepo()}
	identityService := service.NewIdentityService(cfg, service.Dependencies{UserRepo: repo})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), time.Second)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, &persistence.Postgres{}, &persistence.Redis{}),
		Auth:           handlers.NewAuthHandler(identityService),
		AuthMiddleware: auth.NewMiddleware(identityService.Issuer(), repo),
	})

	resp, _ := postJSON(t, app, "/api/identity/login", map[string]string{
		"email":    "a@b.com",
		"password": "whatever9",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.True(t, repo.sawDeadline)
}

func TestMeRequiresBearer(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/identity/me", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
