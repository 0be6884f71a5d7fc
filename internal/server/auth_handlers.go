package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/appdeck-dev/appdeck/internal/auth"
	"github.com/appdeck-dev/appdeck/internal/cli/schema"
	"github.com/appdeck-dev/appdeck/internal/models"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email" label:"Email"`
	Password   string `json:"password" validate:"required,min=8" label:"Password"`
	RememberMe bool   `json:"rememberMe"`
}

// RegisterRequest represents a self-service registration
type RegisterRequest struct {
	Name                 string `json:"name" validate:"required,min=2" label:"Name"`
	Email                string `json:"email" validate:"required,email" label:"Email"`
	Password             string `json:"password" validate:"required,min=8" label:"Password"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"required,eqfield=Password" label:"Password confirmation"`
}

// ForgotPasswordRequest asks for a reset token
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email" label:"Email"`
}

// ResetPasswordRequest sets a new password with a reset token
type ResetPasswordRequest struct {
	Token                string `json:"token" validate:"required" label:"Token"`
	Password             string `json:"password" validate:"required,min=8,hasupper,haslower,hasdigit" label:"Password"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"required,eqfield=Password" label:"Password confirmation"`
}

// UpdateProfileRequest is a partial update of the caller's own profile
type UpdateProfileRequest struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,min=2" label:"Name"`
	Email  *string `json:"email,omitempty" validate:"omitempty,email" label:"Email"`
	Avatar *string `json:"avatar,omitempty" validate:"omitempty,url" label:"Avatar"`
}

// AuthResponse is returned by login and registration
type AuthResponse struct {
	User      models.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// MessageResponse is a bare message body
type MessageResponse struct {
	Message string `json:"message"`
}

const forgotPasswordMessage = "If an account exists for that email, a reset link has been sent"

// bindAndValidate decodes the JSON body into req and validates it. It
// writes the error response and returns false on failure.
func (s *Server) bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := schema.Validate(req); err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
				"message": verr.Fields[0].Message,
				"errors":  verr.Messages(),
			})
			return false
		}
		s.logger.Error().Err(err).Msg("Failed to validate request")
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return false
	}
	return true
}

// issueToken signs a token for user and writes the auth response
func (s *Server) issueToken(c *gin.Context, status int, user *models.User) {
	issued, err := auth.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		respondError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.JSON(status, AuthResponse{
		User:      *user,
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if !s.bindAndValidate(c, &req) {
		return
	}

	// Find user by email
	var user models.User
	if err := s.db.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Verify password
	if err := auth.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		respondError(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User logged in")
	s.issueToken(c, http.StatusOK, &user)
}

func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if !s.bindAndValidate(c, &req) {
		return
	}

	email := normalizeEmail(req.Email)

	var existing int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to check email")
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if existing > 0 {
		respondError(c, http.StatusConflict, "Email is already registered")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		respondError(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	user := &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(req.Name),
		Role:         models.RoleUser,
	}

	// The first account administers the deployment
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			user.Role = models.RoleAdmin
		}
		return tx.Create(user).Error
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create user")
		respondError(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Str("role", string(user.Role)).Msg("User registered")
	s.issueToken(c, http.StatusCreated, user)
}

func (s *Server) logout(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	revoked := &models.RevokedToken{
		TokenID:   sessionData.TokenID,
		UserID:    sessionData.UserID,
		ExpiresAt: time.Unix(sessionData.ExpiresAt, 0).UTC(),
	}
	if err := s.db.Create(revoked).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to revoke token")
		respondError(c, http.StatusInternalServerError, "Failed to log out")
		return
	}

	// Drop revocations for tokens that have expired on their own
	if err := s.db.Where("expires_at < ?", time.Now().UTC()).Delete(&models.RevokedToken{}).Error; err != nil {
		s.logger.Warn().Err(err).Msg("Failed to prune revoked tokens")
	}

	s.logger.Info().Str("user_id", sessionData.UserID).Msg("User logged out")
	c.JSON(http.StatusOK, MessageResponse{Message: "Logged out"})
}

func (s *Server) getCurrentUser(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var user models.User
	if err := models.FindByID(s.db, sessionData.UserID, &user); err != nil {
		s.logger.Error().Err(err).Str("user_id", sessionData.UserID).Msg("Failed to find user")
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, user)
}

func (s *Server) updateCurrentUser(c *gin.Context) {
	var req UpdateProfileRequest
	if !s.bindAndValidate(c, &req) {
		return
	}

	sessionData, _ := GetSessionData(c)
	s.applyUserUpdate(c, sessionData.UserID, userUpdate{
		Name:   req.Name,
		Email:  req.Email,
		Avatar: req.Avatar,
	})
}

func (s *Server) forgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !s.bindAndValidate(c, &req) {
		return
	}

	// The response is the same whether or not the account exists
	var user models.User
	err := s.db.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusOK, MessageResponse{Message: forgotPasswordMessage})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to find user")
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	token, err := auth.GenerateSecret(32)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate reset token")
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	reset := &models.PasswordReset{
		UserID:    user.ID,
		TokenHash: auth.HashResetToken(token),
		ExpiresAt: time.Now().UTC().Add(s.config.Auth.ResetTTL),
	}
	if err := s.db.Create(reset).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to store reset token")
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.resetNotifier(user, token)
	c.JSON(http.StatusOK, MessageResponse{Message: forgotPasswordMessage})
}

func (s *Server) resetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !s.bindAndValidate(c, &req) {
		return
	}

	var reset models.PasswordReset
	err := s.db.Where("token_hash = ? AND used_at IS NULL", auth.HashResetToken(req.Token)).First(&reset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && time.Now().After(reset.ExpiresAt)) {
		respondError(c, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to find reset token")
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := tx.Model(&reset).Update("used_at", &now).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", reset.UserID).Update("password_hash", passwordHash).Error
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to reset password")
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.logger.Info().Str("user_id", reset.UserID).Msg("Password reset")
	c.JSON(http.StatusOK, MessageResponse{Message: "Password has been reset"})
}
