package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coinbot/backend/internal/config"
	"github.com/coinbot/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

// AuthService authenticates operators of the admin API.
type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	cfg       *config.AuthConfig
	validator *ValidationHelper
	log       *zap.Logger
}

// LoginRequest represents the login request payload
// @Description Admin login request structure
type LoginRequest struct {
	Username string `json:"username" validate:"required" example:"root"`              // Admin login name
	Password string `json:"password" validate:"required,min=6" example:"password123"` // Admin password
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token string       `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	Admin models.Admin `json:"admin"`
}

func NewAuthService(db *sql.DB, redisClient *redis.Client, cfg *config.AuthConfig, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		db:        db,
		redis:     redisClient,
		cfg:       cfg,
		validator: NewValidationHelper(),
		log:       log.Named("auth"),
	}
}

// Login handles admin authentication
// @Summary Login admin
// @Description Authenticate an admin with username and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	s.log.Info("login attempt", zap.String("remote_addr", r.RemoteAddr))

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req LoginRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var admin models.Admin
	var hashedPassword string
	err := s.db.QueryRowContext(r.Context(),
		"SELECT id, username, name, password, created_at FROM admins WHERE username = $1",
		strings.ToLower(req.Username),
	).Scan(&admin.ID, &admin.Username, &admin.Name, &hashedPassword, &admin.CreatedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Error("admin lookup failed", zap.Error(err))
		}
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if !s.VerifyPassword(req.Password, hashedPassword) {
		s.log.Warn("invalid password", zap.String("username", admin.Username))
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	token, err := s.GenerateToken(admin.ID)
	if err != nil {
		s.log.Error("token generation failed", zap.Int("admin_id", admin.ID), zap.Error(err))
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	s.log.Info("login successful", zap.Int("admin_id", admin.ID))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, Admin: admin})
}

// Logout handles admin logout
// @Summary Logout admin
// @Description Revoke the bearer token until it expires
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string "Logout successful"
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token != "" && s.redis != nil {
		expiry := time.Duration(s.cfg.ExpiryHours) * time.Hour
		if err := s.redis.Set(r.Context(), RevokedTokenKey(token), "1", expiry).Err(); err != nil {
			s.log.Warn("failed to revoke token", zap.Error(err))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logout successful"})
}

// RevokedTokenKey is the redis key marking a logged-out token.
func RevokedTokenKey(token string) string {
	return "blacklist:" + token
}

// CreateAdmin stores a new admin with an argon2id password hash.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password, name string) (*models.Admin, error) {
	if len(password) < 6 {
		return nil, fmt.Errorf("password must be at least 6 characters")
	}
	hashed, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	admin := &models.Admin{Username: strings.ToLower(username), Name: name}
	err = s.db.QueryRowContext(ctx,
		"INSERT INTO admins (username, password, name) VALUES ($1, $2, $3) RETURNING id, created_at",
		admin.Username, hashed, admin.Name,
	).Scan(&admin.ID, &admin.CreatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("admin %q already exists", admin.Username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}
	return admin, nil
}

func (s *AuthService) GenerateToken(adminID int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"admin_id": adminID,
		"exp":      time.Now().Add(time.Duration(s.cfg.ExpiryHours) * time.Hour).Unix(),
	})
	return token.SignedString([]byte(s.cfg.SecretKey))
}

func (s *AuthService) HashPassword(password string) (string, error) {
	p := s.cfg.Argon2
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLength)
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func (s *AuthService) VerifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	p := s.cfg.Argon2
	computed := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computed) == 1
}
