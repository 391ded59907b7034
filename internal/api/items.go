package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/erazemk/izposoja/internal/model"
)

// ListItems fetches one page of the catalog.
func (c *Client) ListItems(ctx context.Context, limit, offset int) (*model.PaginatedItemResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var page model.PaginatedItemResponse
	if err := c.do(ctx, "list_items", http.MethodGet, "/items?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetItem fetches a single item.
func (c *Client) GetItem(ctx context.Context, itemID uuid.UUID) (model.Item, error) {
	path := "/items/" + itemID.String()

	var raw json.RawMessage
	if err := c.do(ctx, "get_item", http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	item, err := model.DecodeItem(raw)
	if err != nil {
		return nil, &RequestError{Op: "get_item", Method: http.MethodGet, Path: path, StatusCode: http.StatusOK, Err: err}
	}
	return item, nil
}

// CreateItem adds an item. The category is taken from the request type.
func (c *Client) CreateItem(ctx context.Context, req model.ItemRequest) error {
	return c.do(ctx, "create_item", http.MethodPost, "/items", req, nil)
}

// UpdateItem replaces the fields of an item. The server rejects a request
// whose category differs from the stored item's.
func (c *Client) UpdateItem(ctx context.Context, itemID uuid.UUID, req model.ItemRequest) error {
	return c.do(ctx, "update_item", http.MethodPut, "/items/"+itemID.String(), req, nil)
}

// DeleteItem removes an item.
func (c *Client) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return c.do(ctx, "delete_item", http.MethodDelete, "/items/"+itemID.String(), nil, nil)
}

// CheckoutItem checks an item out to the current user. A conflict is
// reported when the item already has an active checkout.
func (c *Client) CheckoutItem(ctx context.Context, itemID uuid.UUID) error {
	return c.do(ctx, "checkout_item", http.MethodPost, fmt.Sprintf("/items/%s/checkouts", itemID), nil, nil)
}

// ReturnItem closes an active checkout of an item.
func (c *Client) ReturnItem(ctx context.Context, itemID, checkoutID uuid.UUID) error {
	path := fmt.Sprintf("/items/%s/checkouts/%s/returned", itemID, checkoutID)
	return c.do(ctx, "return_item", http.MethodPut, path, nil, nil)
}

// CheckoutHistory lists every checkout of an item, returned or not.
func (c *Client) CheckoutHistory(ctx context.Context, itemID uuid.UUID) ([]model.CheckoutRecord, error) {
	var resp struct {
		Items []model.CheckoutRecord `json:"items"`
	}
	path := fmt.Sprintf("/items/%s/checkout-history", itemID)
	if err := c.do(ctx, "checkout_history", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ActiveCheckouts lists every checkout that is not returned yet, across all
// users.
func (c *Client) ActiveCheckouts(ctx context.Context) ([]model.CheckoutRecord, error) {
	var resp struct {
		Items []model.CheckoutRecord `json:"items"`
	}
	if err := c.do(ctx, "active_checkouts", http.MethodGet, "/items/checkouts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}
