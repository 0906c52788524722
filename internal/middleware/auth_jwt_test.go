package middleware_test

import (
	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/middleware"
	"app/internal/repository"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// レスポンス確認用
// =====================

type mwErrorResponse struct {
	Error string `json:"error"`
}

type mwOKResponse struct {
	Kind       string `json:"kind"`
	UserID     int64  `json:"user_id"`
	InvitadoID string `json:"invitado_id"`
	Role       string `json:"role"`
	JTI        string `json:"jti"`
	Anonymous  bool   `json:"anonymous"`
}

// =====================
// TokenRecordRepository モック
// =====================

type MockTokenRepoForMiddleware struct {
	mock.Mock
}

func (m *MockTokenRepoForMiddleware) Create(ctx context.Context, record *model.TokenRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockTokenRepoForMiddleware) FindByJTI(ctx context.Context, jti string) (*model.TokenRecord, error) {
	args := m.Called(ctx, jti)
	r, _ := args.Get(0).(*model.TokenRecord)
	return r, args.Error(1)
}

func (m *MockTokenRepoForMiddleware) Revoke(ctx context.Context, jti string, revokedAt time.Time) (int64, error) {
	args := m.Called(ctx, jti, revokedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTokenRepoForMiddleware) RevokeAllByUserID(ctx context.Context, userID int64, revokedAt time.Time) (int64, error) {
	args := m.Called(ctx, userID, revokedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTokenRepoForMiddleware) RevokeAllByInvitadoID(ctx context.Context, invitadoID string, revokedAt time.Time) (int64, error) {
	args := m.Called(ctx, invitadoID, revokedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTokenRepoForMiddleware) DeleteRetired(ctx context.Context, now time.Time, maxRetention time.Duration, grace time.Duration) (int64, error) {
	args := m.Called(ctx, now, maxRetention, grace)
	return args.Get(0).(int64), args.Error(1)
}

var _ repository.TokenRecordRepository = (*MockTokenRepoForMiddleware)(nil)

// =====================
// helper
// =====================

const mwSecret = "test-secret"

func mustUserJWT(t *testing.T, secret string, id int64, role string, jti string, exp int64, method jwt.SigningMethod) string {
	t.Helper()

	claims := jwt.MapClaims{
		"id":   id,
		"role": role,
		"jti":  jti,
		"iat":  1,
		"exp":  exp,
	}

	token := jwt.NewWithClaims(method, claims)

	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return s
}

func mustGuestJWT(t *testing.T, secret string, guestID string, jti string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"guestId": guestID,
		"role":    "invitado",
		"type":    "guest",
		"jti":     jti,
		"iat":     1,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return s
}

// AuthJWT配下にPrincipalをそのまま返すハンドラを置いたechoを作る
func newEchoWithAuth(tokens repository.TokenRecordRepository) *echo.Echo {
	e := echo.New()
	e.Use(middleware.AuthJWT(config.Config{JWTSecret: mwSecret}, tokens))
	e.GET("/probe", func(c echo.Context) error {
		p, ok := middleware.PrincipalFrom(c)
		if !ok {
			return c.JSON(http.StatusOK, mwOKResponse{Anonymous: true})
		}
		return c.JSON(http.StatusOK, mwOKResponse{
			Kind:       string(p.Kind),
			UserID:     p.UserID,
			InvitadoID: p.InvitadoID,
			Role:       string(p.Role),
			JTI:        p.JTI,
		})
	})
	return e
}

func runRequest(t *testing.T, e *echo.Echo, authHeader string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

func decodeMWOK(t *testing.T, rec *httptest.ResponseRecorder) mwOKResponse {
	t.Helper()
	var r mwOKResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

// =====================
// AuthJWT
// =====================

func TestAuthJWT_NoHeader_AnonymousPassThrough(t *testing.T) {
	tokens := new(MockTokenRepoForMiddleware)
	e := newEchoWithAuth(tokens)

	rec := runRequest(t, e, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeMWOK(t, rec).Anonymous)

	//匿名は台帳を読まない
	tokens.AssertNotCalled(t, "FindByJTI", mock.Anything, mock.Anything)
}

func TestAuthJWT_GarbageToken_TokenInvalid(t *testing.T) {
	tokens := new(MockTokenRepoForMiddleware)
	e := newEchoWithAuth(tokens)

	rec := runRequest(t, e, "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	//形式不正はtoken_revokedではなくtoken_invalid
	assert.Equal(t, "token_invalid", decodeMWError(t, rec).Error)
}

func TestAuthJWT_WrongSignature_TokenInvalid(t *testing.T) {
	tokens := new(MockTokenRepoForMiddleware)
	e := newEchoWithAuth(tokens)

	tok := mustUserJWT(t, "other-secret", 42, "usuario", "jti-1", 9999999999, jwt.SigningMethodHS256)

	rec := runRequest(t, e, "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token_invalid", decodeMWError(t, rec).Error)
}

func TestAuthJWT_ExpiredToken_TokenInvalid(t *testing.T) {
	tokens := new(MockTokenRepoForMiddleware)
	e := newEchoWithAuth(tokens)

	tok := mustUserJWT(t, mwSecret, 42, "usuario", "jti-1", 1000, jwt.SigningMethodHS256)

	rec := runRequest(t, e, "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token_invalid", decodeMWError(t, rec).Error)

	//期限切れは台帳まで行かない
	tokens.AssertNotCalled(t, "FindByJTI", mock.Anything, mock.Anything)
}

func TestAuthJWT_RevokedRecord_TokenRevoked(t *testing.T) {
	tokens := new(MockTokenRepoForMiddleware)
	e := newEchoWithAuth(tokens)

	userID := int64(42)
	tokens.On("FindByJTI", mock.Anything, "jti-1").Return(&model.TokenRecord{
		JTI:       "jti-1",
		UserID:    &userID,
		TokenType: model.TokenTypeAccess,
		Revoked:   true,
	}, nil)

	tok := mustUserJWT(t, mwSecret, userID, "usuario", "jti-1", 9999999999, jwt.SigningMethodHS256)

	rec := runRequest(t, e, "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token_revoked", decodeMWError(t, rec).Error)
}

func TestAuthJWT_UnknownJTI_TokenRevoked(t *testing.T) {
	tokens := new(MockTokenRepoForMiddleware)
	e := newEchoWithAuth(tokens)

	tokens.On("FindByJTI", mock.Anything, "jti-unknown").Return(nil, repository.ErrTokenRecordNotFound)

	tok := mustUserJWT(t, mwSecret, 42, "usuario", "jti-unknown", 9999999999, jwt.SigningMethodHS256)

	rec := runRequest(t, e, "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token_revoked", decodeMWError(t, rec).Error)
}

func TestAuthJWT_ValidUserToken_PrincipalAttached(t *testing.T) {
	tokens := new(MockTokenRepoForMiddleware)
	e := newEchoWithAuth(tokens)

	userID := int64(42)
	tokens.On("FindByJTI", mock.Anything, "jti-1").Return(&model.TokenRecord{
		JTI:       "jti-1",
		UserID:    &userID,
		TokenType: model.TokenTypeAccess,
		Revoked:   false,
	}, nil)

	tok := mustUserJWT(t, mwSecret, userID, "usuario", "jti-1", 9999999999, jwt.SigningMethodHS256)

	rec := runRequest(t, e, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeMWOK(t, rec)
	assert.Equal(t, "user", body.Kind)
	assert.Equal(t, userID, body.UserID)
	assert.Equal(t, "usuario", body.Role)
	assert.Equal(t, "jti-1", body.JTI)
}

func TestAuthJWT_ValidGuestToken_PrincipalAttached(t *testing.T) {
	tokens := new(MockTokenRepoForMiddleware)
	e := newEchoWithAuth(tokens)

	guestID := "11111111-2222-3333-4444-555555555555"
	tokens.On("FindByJTI", mock.Anything, "jti-g").Return(&model.TokenRecord{
		JTI:        "jti-g",
		InvitadoID: &guestID,
		TokenType:  model.TokenTypeAccess,
		Revoked:    false,
	}, nil)

	//ゲストtokenはexp無しでも通る
	tok := mustGuestJWT(t, mwSecret, guestID, "jti-g")

	rec := runRequest(t, e, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeMWOK(t, rec)
	assert.Equal(t, "guest", body.Kind)
	assert.Equal(t, guestID, body.InvitadoID)
	assert.Equal(t, "invitado", body.Role)
}

func TestAuthJWT_NoJTIClaim_SkipsRevocationCheck(t *testing.T) {
	tokens := new(MockTokenRepoForMiddleware)
	e := newEchoWithAuth(tokens)

	//旧形式：jti無し
	claims := jwt.MapClaims{
		"id":   int64(42),
		"role": "usuario",
		"iat":  1,
		"exp":  9999999999,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(mwSecret))
	assert.NoError(t, err)

	rec := runRequest(t, e, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, rec.Code)

	tokens.AssertNotCalled(t, "FindByJTI", mock.Anything, mock.Anything)
}

// =====================
// RoleGuard
// =====================

func newEchoWithRoleGuard(tokens repository.TokenRecordRepository, allowed ...model.Role) *echo.Echo {
	e := echo.New()
	e.Use(middleware.AuthJWT(config.Config{JWTSecret: mwSecret}, tokens))
	g := e.Group("/guarded", middleware.RoleGuard(allowed...))
	g.GET("", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return e
}

func TestRoleGuard_NoPrincipal_Unauthenticated(t *testing.T) {
	tokens := new(MockTokenRepoForMiddleware)
	e := newEchoWithRoleGuard(tokens, model.RoleAdministrador)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decodeMWError(t, rec).Error)
}

func TestRoleGuard_WrongRole_Forbidden(t *testing.T) {
	tokens := new(MockTokenRepoForMiddleware)
	e := newEchoWithRoleGuard(tokens, model.RoleAdministrador)

	userID := int64(42)
	tokens.On("FindByJTI", mock.Anything, "jti-1").Return(&model.TokenRecord{
		JTI:    "jti-1",
		UserID: &userID,
	}, nil)

	tok := mustUserJWT(t, mwSecret, userID, "usuario", "jti-1", 9999999999, jwt.SigningMethodHS256)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeMWError(t, rec).Error)
}

func TestRoleGuard_AllowedRole_Passes(t *testing.T) {
	tokens := new(MockTokenRepoForMiddleware)
	e := newEchoWithRoleGuard(tokens, model.RoleAdministrador, model.RoleUsuario)

	userID := int64(42)
	tokens.On("FindByJTI", mock.Anything, "jti-1").Return(&model.TokenRecord{
		JTI:    "jti-1",
		UserID: &userID,
	}, nil)

	tok := mustUserJWT(t, mwSecret, userID, "usuario", "jti-1", 9999999999, jwt.SigningMethodHS256)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
