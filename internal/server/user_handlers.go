package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/appdeck-dev/appdeck/internal/auth"
	"github.com/appdeck-dev/appdeck/internal/listing"
	"github.com/appdeck-dev/appdeck/internal/models"
)

// CreateUserRequest represents a request to create a new user
type CreateUserRequest struct {
	Name                 string      `json:"name" validate:"required,min=2" label:"Name"`
	Email                string      `json:"email" validate:"required,email" label:"Email"`
	Role                 models.Role `json:"role" validate:"required,oneof=admin user guest" label:"Role"`
	Avatar               string      `json:"avatar,omitempty" validate:"omitempty,url" label:"Avatar"`
	Password             string      `json:"password" validate:"required,min=8,hasupper,haslower,hasdigit" label:"Password"`
	PasswordConfirmation string      `json:"passwordConfirmation" validate:"required,eqfield=Password" label:"Password confirmation"`
}

// UpdateUserRequest is a partial update; absent fields are left unchanged
type UpdateUserRequest struct {
	Name   *string      `json:"name,omitempty" validate:"omitempty,min=2" label:"Name"`
	Email  *string      `json:"email,omitempty" validate:"omitempty,email" label:"Email"`
	Role   *models.Role `json:"role,omitempty" validate:"omitempty,oneof=admin user guest" label:"Role"`
	Avatar *string      `json:"avatar,omitempty" validate:"omitempty,url" label:"Avatar"`
}

// userUpdate is the set of changes shared by profile and admin updates
type userUpdate struct {
	Name   *string
	Email  *string
	Role   *models.Role
	Avatar *string
}

// userSorts maps the sort parameter to an ascending comparison
var userSorts = map[string]func(a, b models.User) bool{
	"name":      func(a, b models.User) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) },
	"email":     func(a, b models.User) bool { return a.Email < b.Email },
	"role":      func(a, b models.User) bool { return a.Role < b.Role },
	"createdAt": func(a, b models.User) bool { return a.CreatedAt.Before(b.CreatedAt) },
	"updatedAt": func(a, b models.User) bool { return a.UpdatedAt.Before(b.UpdatedAt) },
}

func (s *Server) listUsers(c *gin.Context) {
	page := 1
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(c, http.StatusBadRequest, "Invalid page")
			return
		}
		page = n
	}
	pageSize := listing.DefaultPageSize
	if v := c.Query("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || !listing.ValidPageSize(n) {
			respondError(c, http.StatusBadRequest, "Invalid page size (expected 5, 10, 20 or 50)")
			return
		}
		pageSize = n
	}
	search := strings.TrimSpace(c.Query("search"))
	role := c.Query("role")
	sortKey := c.DefaultQuery("sort", "createdAt")
	order := c.DefaultQuery("order", listing.OrderDesc)

	less, ok := userSorts[sortKey]
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid sort field")
		return
	}
	if order != listing.OrderAsc && order != listing.OrderDesc {
		respondError(c, http.StatusBadRequest, "Invalid sort order")
		return
	}

	var users []models.User
	if err := s.db.Find(&users).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list users")
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	users = listing.Filter(users, func(u models.User) bool {
		if role != "" && string(u.Role) != role {
			return false
		}
		return listing.ContainsFold(search, u.Name, u.Email)
	})
	users = listing.SortBy(users, order, less)

	c.JSON(http.StatusOK, listing.Paginate(users, page, pageSize))
}

func (s *Server) getUser(c *gin.Context) {
	var user models.User
	if err := models.FindByID(s.db, c.Param("id"), &user); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, user)
}

func (s *Server) createUser(c *gin.Context) {
	var req CreateUserRequest
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

	// Hash the provided password
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
		Role:         req.Role,
		Avatar:       req.Avatar,
	}

	if err := s.db.Create(user).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create user")
		respondError(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	sessionData, _ := GetSessionData(c)
	s.logger.Info().
		Str("user_id", user.ID).
		Str("email", user.Email).
		Str("created_by", sessionData.UserID).
		Msg("User created")

	c.JSON(http.StatusCreated, user)
}

func (s *Server) updateUser(c *gin.Context) {
	var req UpdateUserRequest
	if !s.bindAndValidate(c, &req) {
		return
	}

	userID := c.Param("id")
	sessionData, _ := GetSessionData(c)

	// An admin demoting themselves could leave nobody able to manage users
	if userID == sessionData.UserID && req.Role != nil && *req.Role != models.RoleAdmin {
		respondError(c, http.StatusBadRequest, "Cannot change your own role")
		return
	}

	s.applyUserUpdate(c, userID, userUpdate{
		Name:   req.Name,
		Email:  req.Email,
		Role:   req.Role,
		Avatar: req.Avatar,
	})
}

// applyUserUpdate loads the user, applies the non-nil fields and writes the
// updated user as the response.
func (s *Server) applyUserUpdate(c *gin.Context, userID string, upd userUpdate) {
	var user models.User
	if err := models.FindByID(s.db, userID, &user); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if email != user.Email {
			var taken int64
			if err := s.db.Model(&models.User{}).Where("email = ? AND id <> ?", email, user.ID).Count(&taken).Error; err != nil {
				s.logger.Error().Err(err).Msg("Failed to check email")
				respondError(c, http.StatusInternalServerError, "Internal server error")
				return
			}
			if taken > 0 {
				respondError(c, http.StatusConflict, "Email is already registered")
				return
			}
		}
		user.Email = email
	}
	if upd.Name != nil {
		user.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Role != nil {
		user.Role = *upd.Role
	}
	if upd.Avatar != nil {
		user.Avatar = *upd.Avatar
	}

	if err := s.db.Save(&user).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to update user")
		respondError(c, http.StatusInternalServerError, "Failed to update user")
		return
	}

	s.logger.Info().Str("user_id", user.ID).Msg("User updated")
	c.JSON(http.StatusOK, user)
}

func (s *Server) deleteUser(c *gin.Context) {
	userID := c.Param("id")

	sessionData, _ := GetSessionData(c)

	// Prevent deleting self
	if userID == sessionData.UserID {
		respondError(c, http.StatusBadRequest, "Cannot delete yourself")
		return
	}

	// Find user
	var user models.User
	if err := models.FindByID(s.db, userID, &user); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := s.db.Delete(&user).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to delete user")
		respondError(c, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("deleted_by", sessionData.UserID).
		Msg("User deleted")

	c.Status(http.StatusNoContent)
}
