package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/janseva/work-tracker-api/internal/models"
	appErrors "github.com/janseva/work-tracker-api/pkg/errors"
)

type mockUserRepo struct {
	usersByEmail map[string]models.User
	usersByID    map[string]models.User
	tokens       map[string]models.RefreshToken
	auditLogs    []models.AuditLog
	revoked      []string
	lastLoginSet bool

	findEmailErr    error
	createErr       error
	createTokenErr  error
	revokeTokenErr  error
	updateLoginErr  error
	createAuditErr  error
	findTokenErr    error
	revokeAllErr    error
	createdUsers    []models.User
	createdTokens   []models.RefreshToken
	revokedAllUsers []string
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findEmailErr != nil {
		return nil, m.findEmailErr
	}
	if u, ok := m.usersByEmail[email]; ok {
		user := u
		return &user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.usersByID[id]; ok {
		user := u
		return &user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if user.ID == "" {
		user.ID = "new-user"
	}
	m.createdUsers = append(m.createdUsers, *user)
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if m.updateLoginErr != nil {
		return m.updateLoginErr
	}
	m.lastLoginSet = true
	return nil
}

func (m *mockUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createTokenErr != nil {
		return m.createTokenErr
	}
	m.createdTokens = append(m.createdTokens, *token)
	return nil
}

func (m *mockUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if m.findTokenErr != nil {
		return nil, m.findTokenErr
	}
	if t, ok := m.tokens[token]; ok {
		found := t
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	if m.revokeTokenErr != nil {
		return m.revokeTokenErr
	}
	m.revoked = append(m.revoked, id)
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	if m.revokeAllErr != nil {
		return m.revokeAllErr
	}
	m.revokedAllUsers = append(m.revokedAllUsers, userID)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if m.createAuditErr != nil {
		return m.createAuditErr
	}
	m.auditLogs = append(m.auditLogs, *log)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "work-tracker-test",
	}
}

func repoWithUser(t *testing.T, password string, active bool) (*mockUserRepo, models.User) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{
		ID:           "user-1",
		Email:        "staff@example.com",
		PasswordHash: string(hash),
		FullName:     "Staff Member",
		Role:         models.RoleStaff,
		Active:       active,
	}
	return &mockUserRepo{
		usersByEmail: map[string]models.User{user.Email: user},
		usersByID:    map[string]models.User{user.ID: user},
		tokens:       map[string]models.RefreshToken{},
	}, user
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo, user := repoWithUser(t, "secret123", true)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, user.ID, res.User.ID)
	assert.True(t, repo.lastLoginSet)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleStaff, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo, user := repoWithUser(t, "secret123", true)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "wrong"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	repo, _ := repoWithUser(t, "secret123", true)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "whatever"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo, user := repoWithUser(t, "secret123", false)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceLoginTransportFailure(t *testing.T) {
	repo := &mockUserRepo{findEmailErr: errors.New("connection refused")}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "secret123"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrTransport.Code, appErr.Code)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo, user := repoWithUser(t, "secret123", true)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: user.Email, Password: "secret123"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAuthServiceRegisterDefaultsRole(t *testing.T) {
	repo := &mockUserRepo{tokens: map[string]models.RefreshToken{}}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Register(context.Background(), models.RegisterRequest{Email: "new@example.com", Password: "secret123", Name: "New Staff"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, res.User.Role)
	require.Len(t, repo.createdUsers, 1)
	assert.True(t, repo.createdUsers[0].Active)
}

func TestAuthServiceLogoutIsBestEffort(t *testing.T) {
	repo, user := repoWithUser(t, "secret123", true)
	repo.findTokenErr = errors.New("connection refused")
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	// Connectivity failure during revocation must not block logout.
	err := svc.Logout(context.Background(), "some-token", user.ID, "127.0.0.1", "test")
	require.NoError(t, err)
}

func TestAuthServiceLogoutRejectsForeignToken(t *testing.T) {
	repo, user := repoWithUser(t, "secret123", true)
	repo.tokens["stolen"] = models.RefreshToken{ID: "tok-1", UserID: "someone-else", Token: "stolen", ExpiresAt: time.Now().Add(time.Hour)}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	err := svc.Logout(context.Background(), "stolen", user.ID, "127.0.0.1", "test")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAuthServiceLogoutAllRevokesEverySession(t *testing.T) {
	repo, user := repoWithUser(t, "secret123", true)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	var events []AuthEvent
	svc.OnAuthStateChange(func(event AuthEvent, session *models.SessionInfo) {
		events = append(events, event)
	})

	require.NoError(t, svc.LogoutAll(context.Background(), user.ID, "127.0.0.1", "test"))
	assert.Equal(t, []string{user.ID}, repo.revokedAllUsers)
	assert.Equal(t, []AuthEvent{AuthEventSignedOut}, events)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogout, repo.auditLogs[0].Action)
}

func TestAuthServiceLogoutAllSurfacesRevocationFailure(t *testing.T) {
	repo, user := repoWithUser(t, "secret123", true)
	repo.revokeAllErr = errors.New("db down")
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	err := svc.LogoutAll(context.Background(), user.ID, "127.0.0.1", "test")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPersistence.Code, appErr.Code)
}

func TestAuthServiceEnsureAdminCreatesFirstAccount(t *testing.T) {
	repo := &mockUserRepo{tokens: map[string]models.RefreshToken{}}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	require.NoError(t, svc.EnsureAdmin(context.Background(), "admin@example.com", "secret123", "First Admin"))
	require.Len(t, repo.createdUsers, 1)
	created := repo.createdUsers[0]
	assert.Equal(t, models.RoleAdmin, created.Role)
	assert.True(t, created.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("secret123")))
}

func TestAuthServiceEnsureAdminLeavesExistingAccount(t *testing.T) {
	repo, user := repoWithUser(t, "secret123", true)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	require.NoError(t, svc.EnsureAdmin(context.Background(), user.Email, "different", "Someone"))
	assert.Empty(t, repo.createdUsers)
}

func TestAuthServiceEnsureAdminBlankEmailIsNoOp(t *testing.T) {
	repo := &mockUserRepo{}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	require.NoError(t, svc.EnsureAdmin(context.Background(), "", "", ""))
	assert.Empty(t, repo.createdUsers)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo, user := repoWithUser(t, "secret123", true)
	repo.tokens["old-token"] = models.RefreshToken{
		ID:        "tok-1",
		UserID:    user.ID,
		Token:     "old-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "old-token", res.RefreshToken)
	assert.Contains(t, repo.revoked, "tok-1")
}

func TestAuthServiceRefreshRejectsExpired(t *testing.T) {
	repo, user := repoWithUser(t, "secret123", true)
	repo.tokens["expired"] = models.RefreshToken{
		ID:        "tok-1",
		UserID:    user.ID,
		Token:     "expired",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "expired"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthenticated.Code, appErr.Code)
}

func TestAuthServiceCurrentUser(t *testing.T) {
	repo, user := repoWithUser(t, "secret123", true)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	info, err := svc.CurrentUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, info.Email)

	_, err = svc.CurrentUser(context.Background(), "ghost")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthenticated.Code, appErr.Code)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	repo, _ := repoWithUser(t, "secret123", true)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthenticated.Code, appErr.Code)
}

func TestAuthServiceStateChangeNotifications(t *testing.T) {
	repo, user := repoWithUser(t, "secret123", true)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	var events []AuthEvent
	sub := svc.OnAuthStateChange(func(event AuthEvent, session *models.SessionInfo) {
		events = append(events, event)
		assert.Equal(t, user.ID, session.UserID)
	})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	require.NoError(t, err)
	require.NoError(t, svc.Logout(context.Background(), res.RefreshToken, user.ID, "127.0.0.1", "test"))
	assert.Equal(t, []AuthEvent{AuthEventSignedIn, AuthEventSignedOut}, events)

	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestAuthServiceNilListenerHandle(t *testing.T) {
	repo, _ := repoWithUser(t, "secret123", true)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	sub := svc.OnAuthStateChange(nil)
	require.NotNil(t, sub)
	sub.Unsubscribe()

	var nilSub *AuthSubscription
	nilSub.Unsubscribe()
}
