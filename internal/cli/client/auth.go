package client

import (
	"context"
	"time"
)

// Role is a user's access level
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// User represents a user as returned by the API
type User struct {
	ID        string    `json:"id" validate:"required" label:"ID"`
	Name      string    `json:"name" validate:"required,min=2" label:"Name"`
	Email     string    `json:"email" validate:"required,email" label:"Email"`
	Role      Role      `json:"role" validate:"required,oneof=admin user guest" label:"Role"`
	Avatar    string    `json:"avatar,omitempty" validate:"omitempty,url" label:"Avatar"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email" label:"Email"`
	Password   string `json:"password" validate:"required,min=8" label:"Password"`
	RememberMe bool   `json:"rememberMe"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Name                 string `json:"name" validate:"required,min=2" label:"Name"`
	Email                string `json:"email" validate:"required,email" label:"Email"`
	Password             string `json:"password" validate:"required,min=8" label:"Password"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"required,eqfield=Password" label:"Password confirmation"`
}

// AuthResponse is returned by login and registration
type AuthResponse struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ForgotPasswordRequest asks the API to send a reset token
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email" label:"Email"`
}

// ResetPasswordRequest sets a new password using a reset token
type ResetPasswordRequest struct {
	Token                string `json:"token" validate:"required" label:"Token"`
	Password             string `json:"password" validate:"required,min=8,hasupper,haslower,hasdigit" label:"Password"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"required,eqfield=Password" label:"Password confirmation"`
}

// MessageResponse is a bare {"message": "..."} body
type MessageResponse struct {
	Message string `json:"message"`
}

// Login authenticates the user and returns the token and profile
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.Post(ctx, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and returns the token and profile
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.Post(ctx, "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout ends the session on the server
func (c *Client) Logout(ctx context.Context) error {
	return c.Post(ctx, "/auth/logout", nil, nil)
}

// Me returns the current user's profile
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.Get(ctx, "/auth/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateMe updates the current user's profile
func (c *Client) UpdateMe(ctx context.Context, req UpdateUserRequest) (*User, error) {
	var user User
	if err := c.Put(ctx, "/auth/me", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ForgotPassword requests a password reset for email
func (c *Client) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (string, error) {
	var resp MessageResponse
	if err := c.Post(ctx, "/auth/forgot-password", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ResetPassword sets a new password with a reset token
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) (string, error) {
	var resp MessageResponse
	if err := c.Post(ctx, "/auth/reset-password", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}
