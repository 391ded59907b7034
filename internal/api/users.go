package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/erazemk/izposoja/internal/model"
)

// CurrentUser returns the user the bearer token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, "current_user", http.MethodGet, "/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login exchanges credentials for an access token. Storing the token is up
// to the caller.
func (c *Client) Login(ctx context.Context, email, password string) (*model.AccessToken, error) {
	req := model.LoginRequest{Email: email, Password: password}

	var token model.AccessToken
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", req, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// MyCheckouts lists the current user's checkouts that are not returned yet.
func (c *Client) MyCheckouts(ctx context.Context) ([]model.CheckoutRecord, error) {
	var resp struct {
		Items []model.CheckoutRecord `json:"items"`
	}
	if err := c.do(ctx, "my_checkouts", http.MethodGet, "/users/me/checkouts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ListUsers lists every account. Admin only.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var resp struct {
		Items []model.User `json:"items"`
	}
	if err := c.do(ctx, "list_users", http.MethodGet, "/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// CreateUser registers an account with the User role. Admin only.
func (c *Client) CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, "create_user", http.MethodPost, "/users", req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes an account. Admin only.
func (c *Client) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	return c.do(ctx, "delete_user", http.MethodDelete, fmt.Sprintf("/users/%s", userID), nil, nil)
}

// UpdateUserRole changes an account's role. Admin only.
func (c *Client) UpdateUserRole(ctx context.Context, userID uuid.UUID, role model.Role) error {
	body := model.UpdateUserRoleRequest{Role: role}
	return c.do(ctx, "update_user_role", http.MethodPut, fmt.Sprintf("/users/%s/role", userID), body, nil)
}
