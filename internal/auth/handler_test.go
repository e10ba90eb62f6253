package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-drive/backend/internal/models"
	"github.com/aura-drive/backend/pkg/utils"
)

type userMap struct {
	users map[string]*models.User
	err   error
}

func (m userMap) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	return u, nil
}

func postLogin(t *testing.T, h *Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/auth/login", h.Login)
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLogin(t *testing.T) {
	hash, err := utils.HashPassword("s3cret!")
	require.NoError(t, err)
	user := &models.User{ID: uuid.New(), Email: "ana@example.com", Password: hash, Role: models.RoleUser}
	jwtSvc := NewJWTService("test-secret", 1)
	h := NewHandler(userMap{users: map[string]*models.User{user.Email: user}}, jwtSvc, nil)

	w := postLogin(t, h, LoginRequest{Email: "Ana@Example.com", Password: "s3cret!"})
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	claims, err := jwtSvc.Validate(body.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "user", claims.Role)

	w = postLogin(t, h, LoginRequest{Email: user.Email, Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postLogin(t, h, LoginRequest{Email: "nobody@example.com", Password: "s3cret!"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postLogin(t, h, map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginStoreFailure(t *testing.T) {
	h := NewHandler(userMap{err: errors.New("db down")}, NewJWTService("x", 1), nil)
	w := postLogin(t, h, LoginRequest{Email: "a@example.com", Password: "p"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)
	id := uuid.New()
	token, err := svc.Generate(id, "a@example.com", "admin")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)

	_, err = NewJWTService("other", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewJWTService("secret", -1).Generate(id, "a@example.com", "admin")
	require.NoError(t, err)
	_, err = svc.Validate(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsForeignTokens(t *testing.T) {
	svc := NewJWTService("secret", 1)
	id := uuid.New()
	sign := func(method jwt.SigningMethod, issuer string, userID uuid.UUID) string {
		claims := Claims{
			UserID: userID,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(method, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name  string
		token string
	}{
		{"other issuer", sign(jwt.SigningMethodHS256, "webinar", id)},
		{"no issuer", sign(jwt.SigningMethodHS256, "", id)},
		{"other algorithm", sign(jwt.SigningMethodHS512, Issuer, id)},
		{"no user", sign(jwt.SigningMethodHS256, Issuer, uuid.Nil)},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	claims, err := svc.Validate(sign(jwt.SigningMethodHS256, Issuer, id))
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
}
