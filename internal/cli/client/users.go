package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/appdeck-dev/appdeck/internal/listing"
)

// UserPage is one page of the users list
type UserPage = listing.Page[User]

// ListUsersParams are the query parameters accepted by GET /users
type ListUsersParams struct {
	Page     int
	PageSize int
	Search   string
	Role     string
	Sort     string
	Order    string
}

// Values encodes the non-zero parameters as a query string
func (p ListUsersParams) Values() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Role != "" {
		q.Set("role", p.Role)
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}
	if p.Order != "" {
		q.Set("order", p.Order)
	}
	return q
}

// CreateUserRequest represents the user creation request
type CreateUserRequest struct {
	Name                 string `json:"name" validate:"required,min=2" label:"Name"`
	Email                string `json:"email" validate:"required,email" label:"Email"`
	Role                 Role   `json:"role" validate:"required,oneof=admin user guest" label:"Role"`
	Avatar               string `json:"avatar,omitempty" validate:"omitempty,url" label:"Avatar"`
	Password             string `json:"password" validate:"required,min=8,hasupper,haslower,hasdigit" label:"Password"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"required,eqfield=Password" label:"Password confirmation"`
}

// UpdateUserRequest is a partial update; nil fields are left unchanged
type UpdateUserRequest struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,min=2" label:"Name"`
	Email  *string `json:"email,omitempty" validate:"omitempty,email" label:"Email"`
	Role   *Role   `json:"role,omitempty" validate:"omitempty,oneof=admin user guest" label:"Role"`
	Avatar *string `json:"avatar,omitempty" validate:"omitempty,url" label:"Avatar"`
}

// ListUsers returns a page of users
func (c *Client) ListUsers(ctx context.Context, params ListUsersParams) (*UserPage, error) {
	var page UserPage
	if err := c.Get(ctx, "/users", &page, WithQuery(params.Values())); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetUser returns a single user by ID
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	if err := c.Get(ctx, fmt.Sprintf("/users/%s", url.PathEscape(id)), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a new user
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	var user User
	if err := c.Post(ctx, "/users", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser updates an existing user
func (c *Client) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*User, error) {
	var user User
	if err := c.Put(ctx, fmt.Sprintf("/users/%s", url.PathEscape(id)), req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser deletes a user by ID
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.Delete(ctx, fmt.Sprintf("/users/%s", url.PathEscape(id)), nil)
}
