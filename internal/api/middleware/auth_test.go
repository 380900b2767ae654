package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"medqueue/internal/api/middleware"
	"medqueue/internal/auth"
	"medqueue/internal/models"
	"medqueue/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret"

func newAuthRouter(t *testing.T) (*gin.Engine, *testutil.MemoryStore, *auth.TokenService) {
	t.Helper()
	testutil.SetupGin()

	store := testutil.NewMemoryStore()
	tokens := auth.NewTokenService(testSecret, time.Hour)
	mw := middleware.NewAuthMiddleware(tokens, store.Users())

	r := gin.New()
	r.GET("/protected", mw.AuthRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": auth.GetUserFromContext(c).UserID})
	})
	r.GET("/optional", mw.OptionalAuth(), func(c *gin.Context) {
		user := auth.GetUserFromContext(c)
		if user == nil {
			c.JSON(http.StatusOK, gin.H{"user_id": ""})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": user.UserID})
	})
	r.GET("/doctors-only", mw.AuthRequired(), mw.RequireRoles(models.RoleDoctor), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/admin", mw.AuthRequired(), mw.AdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r, store, tokens
}

func bearer(t *testing.T, tokens *auth.TokenService, user *models.User) string {
	t.Helper()
	token, err := tokens.GenerateToken(user)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthMiddleware_AuthRequired(t *testing.T) {
	tests := []struct {
		name       string
		header     func(t *testing.T, store *testutil.MemoryStore, tokens *auth.TokenService) string
		wantStatus int
		wantErr    string
	}{
		{
			name: "Valid Token",
			header: func(t *testing.T, store *testutil.MemoryStore, tokens *auth.TokenService) string {
				user := testutil.CreateUser(t, store, "alice", "secret1", models.RolePatient, false)
				return bearer(t, tokens, user)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "Missing Authorization Header",
			header: func(*testing.T, *testutil.MemoryStore, *auth.TokenService) string {
				return ""
			},
			wantStatus: http.StatusUnauthorized,
			wantErr:    "no authorization header",
		},
		{
			name: "Invalid Authorization Header Format",
			header: func(*testing.T, *testutil.MemoryStore, *auth.TokenService) string {
				return "Token abc"
			},
			wantStatus: http.StatusUnauthorized,
			wantErr:    "invalid authorization header",
		},
		{
			name: "Token Signed With Another Secret",
			header: func(t *testing.T, store *testutil.MemoryStore, _ *auth.TokenService) string {
				user := testutil.CreateUser(t, store, "bob", "secret1", models.RolePatient, false)
				return bearer(t, auth.NewTokenService("other-secret", time.Hour), user)
			},
			wantStatus: http.StatusUnauthorized,
			wantErr:    auth.ErrInvalidToken.Error(),
		},
		{
			name: "Deleted User",
			header: func(t *testing.T, _ *testutil.MemoryStore, tokens *auth.TokenService) string {
				ghost := &models.User{ID: uuid.New(), UserID: "USER9999", Role: models.RolePatient}
				return bearer(t, tokens, ghost)
			},
			wantStatus: http.StatusUnauthorized,
			wantErr:    "user not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, store, tokens := newAuthRouter(t)

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if h := tt.header(t, store, tokens); h != "" {
				req.Header.Set("Authorization", h)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantErr != "" {
				var resp models.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantErr, resp.Error)
			}
		})
	}
}

func TestAuthMiddleware_OptionalAuth(t *testing.T) {
	r, store, tokens := newAuthRouter(t)
	user := testutil.CreateUser(t, store, "carol", "secret1", models.RolePatient, false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/optional", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":""}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/optional", nil)
	req.Header.Set("Authorization", bearer(t, tokens, user))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"`+user.UserID+`"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/optional", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_RequireRoles(t *testing.T) {
	tests := []struct {
		role        models.Role
		doctorsOnly int
		adminOnly   int
	}{
		{role: models.RolePatient, doctorsOnly: http.StatusForbidden, adminOnly: http.StatusForbidden},
		{role: models.RoleDoctor, doctorsOnly: http.StatusNoContent, adminOnly: http.StatusForbidden},
		{role: models.RoleAdmin, doctorsOnly: http.StatusNoContent, adminOnly: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			r, store, tokens := newAuthRouter(t)
			user := testutil.CreateUser(t, store, "user_"+string(tt.role), "secret1", tt.role, false)
			header := bearer(t, tokens, user)

			for path, want := range map[string]int{"/doctors-only": tt.doctorsOnly, "/admin": tt.adminOnly} {
				req := httptest.NewRequest(http.MethodGet, path, nil)
				req.Header.Set("Authorization", header)
				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)
				assert.Equal(t, want, w.Code, path)
			}
		})
	}
}
