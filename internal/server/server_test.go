package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdeck-dev/appdeck/internal/config"
	"github.com/appdeck-dev/appdeck/internal/listing"
	"github.com/appdeck-dev/appdeck/internal/models"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		Server:   config.ServerConfig{Port: "0", CORSOrigins: []string{"http://localhost:5173"}},
		Database: config.DatabaseConfig{Driver: "sqlite", URL: filepath.Join(t.TempDir(), "appdeck.sqlite")},
		Auth:     config.AuthConfig{TokenTTL: time.Hour, ResetTTL: time.Hour},
		Logging:  config.LoggingConfig{Level: "error", Format: "json"},
	}

	srv, err := New(cfg, zerolog.Nop(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func register(t *testing.T, srv *Server, name, email string) AuthResponse {
	t.Helper()
	w := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Name:                 name,
		Email:                email,
		Password:             "Password123",
		PasswordConfirmation: "Password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[AuthResponse](t, w)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "online")
}

func TestRegister_FirstUserIsAdmin(t *testing.T) {
	srv := newTestServer(t)

	first := register(t, srv, "Ada Lovelace", "Ada@Example.com")
	assert.Equal(t, models.RoleAdmin, first.User.Role)
	assert.Equal(t, "ada@example.com", first.User.Email)
	assert.NotEmpty(t, first.Token)
	assert.True(t, first.ExpiresAt.After(time.Now()))

	second := register(t, srv, "Grace Hopper", "grace@example.com")
	assert.Equal(t, models.RoleUser, second.User.Role)
}

func TestRegister_Errors(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "Ada Lovelace", "ada@example.com")

	t.Run("duplicate email", func(t *testing.T) {
		w := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", RegisterRequest{
			Name: "Ada", Email: "ada@example.com", Password: "Password123", PasswordConfirmation: "Password123",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.JSONEq(t, `{"message":"Email is already registered"}`, w.Body.String())
	})

	t.Run("validation", func(t *testing.T) {
		w := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", RegisterRequest{
			Name: "Ada", Email: "nope", Password: "Password123", PasswordConfirmation: "Password999",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		body := decode[struct {
			Message string            `json:"message"`
			Errors  map[string]string `json:"errors"`
		}](t, w)
		assert.Equal(t, "Invalid email address", body.Errors["email"])
		assert.Equal(t, "Passwords do not match", body.Errors["passwordConfirmation"])
		assert.NotEmpty(t, body.Message)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLoginMeLogout(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "Ada Lovelace", "ada@example.com")

	w := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ada@example.com", Password: "wrongpass1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"message":"Invalid email or password"}`, w.Body.String())

	w = doJSON(t, srv, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ada@example.com", Password: "Password123"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[AuthResponse](t, w)

	w = doJSON(t, srv, http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[models.User](t, w)
	assert.Equal(t, "Ada Lovelace", me.Name)

	w = doJSON(t, srv, http.MethodPost, "/api/auth/logout", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The token is revoked after logout
	w = doJSON(t, srv, http.MethodGet, "/api/auth/me", login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "missing", header: "", want: "Missing authorization header"},
		{name: "wrong scheme", header: "Basic abc", want: "Invalid authorization header format"},
		{name: "garbage token", header: "Bearer abc", want: "Invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.want, decode[MessageResponse](t, w).Message)
		})
	}
}

func TestUpdateCurrentUser(t *testing.T) {
	srv := newTestServer(t)
	ada := register(t, srv, "Ada Lovelace", "ada@example.com")
	register(t, srv, "Grace Hopper", "grace@example.com")

	name := "Countess Lovelace"
	w := doJSON(t, srv, http.MethodPut, "/api/auth/me", ada.Token, UpdateProfileRequest{Name: &name})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, name, decode[models.User](t, w).Name)

	taken := "grace@example.com"
	w = doJSON(t, srv, http.MethodPut, "/api/auth/me", ada.Token, UpdateProfileRequest{Email: &taken})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUsersCRUD(t *testing.T) {
	srv := newTestServer(t)
	admin := register(t, srv, "Ada Lovelace", "ada@example.com")
	member := register(t, srv, "Grace Hopper", "grace@example.com")

	create := CreateUserRequest{
		Name:                 "Alan Turing",
		Email:                "alan@example.com",
		Role:                 models.RoleGuest,
		Password:             "Password123",
		PasswordConfirmation: "Password123",
	}

	t.Run("non-admin cannot create", func(t *testing.T) {
		w := doJSON(t, srv, http.MethodPost, "/api/users", member.Token, create)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.JSONEq(t, `{"message":"Admin access required"}`, w.Body.String())
	})

	t.Run("weak password", func(t *testing.T) {
		weak := create
		weak.Password, weak.PasswordConfirmation = "password123", "password123"
		w := doJSON(t, srv, http.MethodPost, "/api/users", admin.Token, weak)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "uppercase")
	})

	var alan models.User
	t.Run("create", func(t *testing.T) {
		w := doJSON(t, srv, http.MethodPost, "/api/users", admin.Token, create)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		alan = decode[models.User](t, w)
		assert.Equal(t, models.RoleGuest, alan.Role)
		assert.Len(t, alan.ID, 26)
	})

	t.Run("get", func(t *testing.T) {
		w := doJSON(t, srv, http.MethodGet, "/api/users/"+alan.ID, member.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "alan@example.com", decode[models.User](t, w).Email)

		w = doJSON(t, srv, http.MethodGet, "/api/users/missing", member.Token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("update", func(t *testing.T) {
		role := models.RoleUser
		w := doJSON(t, srv, http.MethodPut, "/api/users/"+alan.ID, admin.Token, UpdateUserRequest{Role: &role})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.RoleUser, decode[models.User](t, w).Role)

		bad := models.Role("root")
		w = doJSON(t, srv, http.MethodPut, "/api/users/"+alan.ID, admin.Token, UpdateUserRequest{Role: &bad})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid role")
	})

	t.Run("cannot demote self", func(t *testing.T) {
		role := models.RoleUser
		w := doJSON(t, srv, http.MethodPut, "/api/users/"+admin.User.ID, admin.Token, UpdateUserRequest{Role: &role})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		w := doJSON(t, srv, http.MethodDelete, "/api/users/"+admin.User.ID, admin.Token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doJSON(t, srv, http.MethodDelete, "/api/users/"+alan.ID, admin.Token, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doJSON(t, srv, http.MethodDelete, "/api/users/"+alan.ID, admin.Token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListUsers(t *testing.T) {
	srv := newTestServer(t)
	admin := register(t, srv, "Ada Lovelace", "ada@example.com")
	register(t, srv, "Grace Hopper", "grace@example.com")
	register(t, srv, "Alan Turing", "alan@example.com")

	w := doJSON(t, srv, http.MethodGet, "/api/users?sort=name&order=asc&pageSize=5", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[listing.Page[models.User]](t, w)
	require.Len(t, page.Data, 3)
	assert.Equal(t, "Ada Lovelace", page.Data[0].Name)
	assert.Equal(t, "Alan Turing", page.Data[1].Name)
	assert.Equal(t, listing.Meta{CurrentPage: 1, TotalPages: 1, TotalItems: 3, PageSize: 5}, page.Meta)

	// A page far past the end is empty, not an error
	w = doJSON(t, srv, http.MethodGet, "/api/users?page=9223372036854775807", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[listing.Page[models.User]](t, w)
	assert.Empty(t, page.Data)
	assert.Equal(t, 3, page.Meta.TotalItems)

	for _, query := range []string{"pageSize=2", "pageSize=9223372036854775807", "pageSize=ten", "page=0", "page=-3"} {
		w = doJSON(t, srv, http.MethodGet, "/api/users?"+query, admin.Token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/users?search=HOPPER", admin.Token, nil)
	page = decode[listing.Page[models.User]](t, w)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "grace@example.com", page.Data[0].Email)

	w = doJSON(t, srv, http.MethodGet, "/api/users?role=admin", admin.Token, nil)
	page = decode[listing.Page[models.User]](t, w)
	require.Len(t, page.Data, 1)

	w = doJSON(t, srv, http.MethodGet, "/api/users?sort=password", admin.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPasswordReset(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "Ada Lovelace", "ada@example.com")

	var token string
	srv.SetResetNotifier(func(user models.User, tok string) { token = tok })

	// Unknown emails get the same answer and no token
	w := doJSON(t, srv, http.MethodPost, "/api/auth/forgot-password", "", ForgotPasswordRequest{Email: "nobody@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, token)

	w = doJSON(t, srv, http.MethodPost, "/api/auth/forgot-password", "", ForgotPasswordRequest{Email: "ada@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, token)

	reset := ResetPasswordRequest{Token: token, Password: "NewPassword1", PasswordConfirmation: "NewPassword1"}
	w = doJSON(t, srv, http.MethodPost, "/api/auth/reset-password", "", reset)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Tokens are single use
	w = doJSON(t, srv, http.MethodPost, "/api/auth/reset-password", "", reset)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ada@example.com", Password: "NewPassword1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNoRoute(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Not found"}`, w.Body.String())
}
