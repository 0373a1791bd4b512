package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/coinbot/backend/internal/config"
	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		SecretKey:   "test-secret",
		ExpiryHours: 24,
		Argon2: config.Argon2Params{
			Time:       1,
			Memory:     8 * 1024,
			Threads:    1,
			KeyLength:  32,
			SaltLength: 16,
		},
	}
}

func TestAuthService_Login(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db, nil, testAuthConfig(), zap.NewNop())
	hashedPassword, err := service.HashPassword("password123")
	require.NoError(t, err)

	t.Run("successful login", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, username, name, password, created_at FROM admins").
			WithArgs("root").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "name", "password", "created_at"}).
				AddRow(1, "root", "Jane Doe", hashedPassword, time.Now()))

		body, _ := json.Marshal(LoginRequest{Username: "Root", Password: "password123"})
		r := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, "root", response.Admin.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, username, name, password, created_at FROM admins").
			WithArgs("root").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "name", "password", "created_at"}).
				AddRow(1, "root", "Jane Doe", hashedPassword, time.Now()))

		body, _ := json.Marshal(LoginRequest{Username: "root", Password: "wrongpassword"})
		r := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown admin", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, username, name, password, created_at FROM admins").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "name", "password", "created_at"}))

		body, _ := json.Marshal(LoginRequest{Username: "ghost", Password: "password123"})
		r := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid request body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBuffer([]byte("invalid")))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("short password fails validation", func(t *testing.T) {
		body, _ := json.Marshal(LoginRequest{Username: "root", Password: "123"})
		r := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "must be at least 6 characters", response.Details["password"])
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthService_Logout(t *testing.T) {
	rdb, rmock := redismock.NewClientMock()
	service := NewAuthService(nil, rdb, testAuthConfig(), zap.NewNop())

	rmock.ExpectSet("blacklist:abc.def.ghi", "1", 24*time.Hour).SetVal("OK")

	r := httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	w := httptest.NewRecorder()

	service.Logout(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestAuthService_CreateAdmin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	service := NewAuthService(db, nil, testAuthConfig(), zap.NewNop())

	mock.ExpectQuery("INSERT INTO admins").
		WithArgs("root", sqlmock.AnyArg(), "Jane Doe").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))

	admin, err := service.CreateAdmin(context.Background(), "Root", "password123", "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, 1, admin.ID)
	assert.Equal(t, "root", admin.Username)

	_, err = service.CreateAdmin(context.Background(), "root", "123", "Jane Doe")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPasswordHashing(t *testing.T) {
	service := NewAuthService(nil, nil, testAuthConfig(), zap.NewNop())

	hashed, err := service.HashPassword("testpassword")
	assert.NoError(t, err)
	assert.NotEmpty(t, hashed)

	assert.True(t, service.VerifyPassword("testpassword", hashed))
	assert.False(t, service.VerifyPassword("wrongpassword", hashed))
	assert.False(t, service.VerifyPassword("testpassword", "not-a-hash"))
}

func TestGenerateToken(t *testing.T) {
	service := NewAuthService(nil, nil, testAuthConfig(), zap.NewNop())

	signed, err := service.GenerateToken(123)
	require.NoError(t, err)

	token, err := jwt.Parse(signed, func(token *jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(123), claims["admin_id"])
}
