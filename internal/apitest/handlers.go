package apitest

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/model"
)

// login handles POST /auth/login.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	var found *account
	for _, a := range s.users {
		if a.user.Email == req.Email {
			found = a
			break
		}
	}
	s.mu.Unlock()

	if found == nil || bcrypt.CompareHashAndPassword(found.passwordHash, []byte(req.Password)) != nil {
		slog.Warn("login failed", "email", req.Email, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "Login failed.")
		return
	}

	token, err := auth.GenerateToken(s.secret, found.user.ID, found.user.Name, string(found.user.Role), 0)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	jsonResponse(w, http.StatusOK, model.AccessToken{UserID: found.user.ID, AccessToken: token})
}

// me handles GET /users/me.
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r.Context())

	s.mu.Lock()
	a, ok := s.users[claims.UserID]
	s.mu.Unlock()
	if !ok {
		jsonError(w, http.StatusUnauthorized, "Login failed.")
		return
	}

	jsonResponse(w, http.StatusOK, a.user)
}

// listItems handles GET /items?limit=&offset=.
func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", DefaultLimit)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	s.mu.Lock()
	total := len(s.order)
	start := min(offset, total)
	end := min(start+limit, total)
	page := make([]model.Item, 0, end-start)
	for _, id := range s.order[start:end] {
		page = append(page, s.items[id])
	}
	s.mu.Unlock()

	jsonResponse(w, http.StatusOK, model.PaginatedItemResponse{
		Items:  page,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// createItem handles POST /items.
func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeItemRequest(w, r)
	if !ok {
		return
	}

	s.AddItem(buildItem(uuid.New(), req, nil))
	w.WriteHeader(http.StatusCreated)
}

// getItem handles GET /items/{item_id}.
func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookupItem(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// updateItem handles PUT /items/{item_id}.
func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookupItem(w, r)
	if !ok {
		return
	}

	req, ok := s.decodeItemRequest(w, r)
	if !ok {
		return
	}
	if req.Category() != item.Category() {
		jsonError(w, http.StatusUnprocessableEntity, model.ErrCategoryChange.Error())
		return
	}

	base := item.Base()
	s.AddItem(buildItem(base.ID, req, base.Checkout))
	w.WriteHeader(http.StatusOK)
}

// deleteItem handles DELETE /items/{item_id}.
func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookupItem(w, r)
	if !ok {
		return
	}
	id := item.Base().ID

	s.mu.Lock()
	delete(s.items, id)
	delete(s.history, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

// checkoutItem handles POST /items/{item_id}/checkouts.
func (s *Server) checkoutItem(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r.Context())
	id, err := uuid.Parse(r.PathValue("item_id"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		jsonError(w, http.StatusNotFound, "Item not found")
		return
	}
	base := item.Base()
	if base.Checkout != nil {
		jsonError(w, http.StatusConflict, "Item is already checked out.")
		return
	}

	now := time.Now().UTC().Truncate(time.Second)
	checkout := &model.Checkout{
		ID:           uuid.New(),
		CheckedOutBy: model.CheckoutUser{ID: claims.UserID, Name: claims.Name},
		CheckedOutAt: now,
	}
	base.Checkout = checkout
	s.items[id] = withBase(item, base)
	s.history[id] = append(s.history[id], model.CheckoutRecord{
		ID:           checkout.ID,
		ItemID:       id,
		CheckedOutBy: claims.UserID,
		CheckedOutAt: now,
	})

	w.WriteHeader(http.StatusCreated)
}

// returnItem handles PUT /items/{item_id}/checkouts/{checkout_id}/returned.
func (s *Server) returnItem(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r.Context())
	id, err := uuid.Parse(r.PathValue("item_id"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	checkoutID, err := uuid.Parse(r.PathValue("checkout_id"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		jsonError(w, http.StatusNotFound, "Item not found")
		return
	}
	base := item.Base()
	if base.Checkout == nil || base.Checkout.ID != checkoutID {
		jsonError(w, http.StatusNotFound, "Checkout not found.")
		return
	}
	if base.Checkout.CheckedOutBy.ID != claims.UserID && !model.RoleAtLeast(model.Role(claims.Role), model.RoleAdmin) {
		jsonError(w, http.StatusForbidden, "Only the borrower or an admin can return this item.")
		return
	}

	now := time.Now().UTC().Truncate(time.Second)
	records := s.history[id]
	for i := range records {
		if records[i].ID == checkoutID {
			records[i].ReturnedAt = &now
		}
	}
	base.Checkout = nil
	s.items[id] = withBase(item, base)

	w.WriteHeader(http.StatusOK)
}

// checkoutHistory handles GET /items/{item_id}/checkout-history.
func (s *Server) checkoutHistory(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookupItem(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	records := append([]model.CheckoutRecord{}, s.history[item.Base().ID]...)
	s.mu.Unlock()

	jsonResponse(w, http.StatusOK, map[string]any{"items": records})
}

// lookupItem resolves the {item_id} path value, writing 400 or 404 on failure.
func (s *Server) lookupItem(w http.ResponseWriter, r *http.Request) (model.Item, bool) {
	id, err := uuid.Parse(r.PathValue("item_id"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	item, ok := s.Item(id)
	if !ok {
		jsonError(w, http.StatusNotFound, "Item not found")
		return nil, false
	}
	return item, true
}

// decodeItemRequest reads and validates a category-tagged item body.
func (s *Server) decodeItemRequest(w http.ResponseWriter, r *http.Request) (model.ItemRequest, bool) {
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	req, err := model.DecodeItemRequest(data)
	if errors.Is(err, model.ErrUnknownCategory) {
		jsonError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	if err := s.validate.Struct(req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return req, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative value")
	}
	return n, nil
}
