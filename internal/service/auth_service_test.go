package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/klaslab/school-api/internal/models"
	appErrors "github.com/klaslab/school-api/pkg/errors"
)

type mockAuthRepo struct {
	users         map[string]*models.User
	usersByEmail  map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	createUserErr error
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		users:         make(map[string]*models.User),
		usersByEmail:  make(map[string]*models.User),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
}

func (m *mockAuthRepo) addUser(user *models.User) {
	m.users[user.ID] = user
	m.usersByEmail[user.Email] = user
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := m.usersByEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockAuthRepo) EmailExists(ctx context.Context, email, excludeID string) (bool, error) {
	user, ok := m.usersByEmail[email]
	if !ok {
		return false, nil
	}
	return user.ID != excludeID, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createUserErr != nil {
		return m.createUserErr
	}
	m.addUser(user)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) RotateRefreshToken(ctx context.Context, oldID string, replacement *models.RefreshToken) error {
	for _, token := range m.refreshTokens {
		if token.ID == oldID {
			if token.Revoked {
				return sql.ErrNoRows
			}
			now := time.Now().UTC()
			token.Revoked = true
			token.RevokedAt = &now
			m.refreshTokens[replacement.Token] = replacement
			return nil
		}
	}
	return sql.ErrNoRows
}

func newAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: time.Hour * 24,
		Issuer:             "school-api",
		Audience:           []string{"school-api"},
	})
}

func TestRegisterIssuesSession(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthService(repo)

	res, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "Student One", Email: "s1@example.com", Password: "password", Role: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, res.Role)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)

	stored := repo.usersByEmail["s1@example.com"]
	require.NotNil(t, stored)
	assert.Equal(t, stored.ID, res.UserID)
	assert.True(t, stored.Active)
	assert.NotEqual(t, "password", stored.PasswordHash)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)

	// The refresh token is persisted, not just returned: exchanging it
	// without an intervening login must succeed.
	require.Len(t, repo.refreshTokens, 1)
	rotated, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: res.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, rotated.RefreshToken)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "s1@example.com", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, stored.ID, login.UserID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "A", Email: "dup@example.com", Password: "password", Role: 2,
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), models.RegisterRequest{
		Name: "B", Email: "dup@example.com", Password: "password", Role: 3,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "X", Email: "x@example.com", Password: "password", Role: 7,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLoginFailuresLookIdentical(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Name: "U", Email: "u@example.com", PasswordHash: string(hash), Role: models.RoleTeacher, Active: true})
	repo.addUser(&models.User{ID: "u2", Name: "I", Email: "inactive@example.com", PasswordHash: string(hash), Role: models.RoleStudent, Active: false})
	svc := newAuthService(repo)

	cases := map[string]models.LoginRequest{
		"unknown email":    {Email: "nobody@example.com", Password: "password"},
		"wrong password":   {Email: "u@example.com", Password: "wrong"},
		"inactive account": {Email: "inactive@example.com", Password: "password"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
		})
	}
}

// TestLoginUnknownEmailPaysHashCost checks the unknown-email branch
// runs a bcrypt compare like the wrong-password branch does, so login
// latency does not reveal which emails are registered.
func TestLoginUnknownEmailPaysHashCost(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthService(repo)
	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "U", Email: "u@example.com", Password: "password", Role: 2,
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "u@example.com", Password: "wrong"})
	require.Error(t, err)
	knownEmail := time.Since(start)

	start = time.Now()
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "wrong"})
	require.Error(t, err)
	unknownEmail := time.Since(start)

	// Both paths pay a cost-11 compare. Without the dummy compare the
	// unknown-email branch returns in microseconds and this fails.
	assert.Greater(t, unknownEmail, knownEmail/4)
}

func TestRefreshRotatesSingleUse(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Name: "U", Email: "u@example.com", PasswordHash: string(hash), Role: models.RoleAdmin, Active: true})
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newAuthService(repo)

	res, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)

	// Presenting the consumed token again must fail.
	_, err = svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	// The replacement works exactly once.
	_, err = svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: res.RefreshToken})
	require.NoError(t, err)
}

func TestRefreshInactiveAccount(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Name: "U", Email: "u@example.com", PasswordHash: "hash", Role: models.RoleStudent, Active: false})
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newAuthService(repo)

	_, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestRefreshExpiredToken(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Name: "U", Email: "u@example.com", PasswordHash: "hash", Role: models.RoleStudent, Active: true})
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(-time.Minute)}
	svc := newAuthService(repo)

	_, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLogoutIsIdempotent(t *testing.T) {
	repo := newMockAuthRepo()
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newAuthService(repo)

	require.NoError(t, svc.Logout(context.Background(), "token"))
	assert.True(t, repo.refreshTokens["token"].Revoked)

	require.NoError(t, svc.Logout(context.Background(), "token"))
	require.NoError(t, svc.Logout(context.Background(), "never-issued"))
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: -time.Minute,
		Issuer:            "school-api",
		Audience:          []string{"school-api"},
	})

	token, _, err := svc.generateAccessToken(&models.User{ID: "u1", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	repo := newMockAuthRepo()
	issuing := newAuthService(repo)
	token, _, err := issuing.generateAccessToken(&models.User{ID: "u1", Role: models.RoleAdmin})
	require.NoError(t, err)

	verifying := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "other-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "school-api",
		Audience:          []string{"school-api"},
	})
	_, err = verifying.ValidateToken(token)
	require.Error(t, err)
}
