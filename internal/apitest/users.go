package apitest

import (
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/izposoja/internal/model"
)

// requireAdmin writes 403 unless the caller's account currently has the
// Admin role. The role is read from the account, not the token.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	claims := getClaims(r.Context())

	s.mu.Lock()
	a, ok := s.users[claims.UserID]
	s.mu.Unlock()

	if !ok || !a.user.IsAdmin() {
		jsonError(w, http.StatusForbidden, "Admin access required.")
		return false
	}
	return true
}

// listUsers handles GET /users.
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	s.mu.Lock()
	users := make([]model.User, 0, len(s.users))
	for _, a := range s.users {
		users = append(users, a.user)
	}
	s.mu.Unlock()

	slices.SortFunc(users, func(a, b model.User) int { return strings.Compare(a.Email, b.Email) })
	jsonResponse(w, http.StatusOK, map[string]any{"items": users})
}

// createUser handles POST /users.
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	var req model.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.users {
		if strings.EqualFold(a.user.Email, req.Email) {
			jsonError(w, http.StatusConflict, "Email is already registered.")
			return
		}
	}

	u := model.User{ID: uuid.New(), Name: req.Name, Email: req.Email, Role: model.RoleUser}
	s.users[u.ID] = &account{user: u, passwordHash: hash}
	jsonResponse(w, http.StatusOK, u)
}

// deleteUser handles DELETE /users/{user_id}.
func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	id, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		jsonError(w, http.StatusNotFound, "User not found.")
		return
	}
	delete(s.users, id)
	w.WriteHeader(http.StatusOK)
}

// updateUserRole handles PUT /users/{user_id}/role.
func (s *Server) updateUserRole(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	id, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.UpdateUserRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.users[id]
	if !ok {
		jsonError(w, http.StatusNotFound, "User not found.")
		return
	}
	a.user.Role = req.Role
	w.WriteHeader(http.StatusOK)
}

// myCheckouts handles GET /users/me/checkouts.
func (s *Server) myCheckouts(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r.Context())
	records := s.activeRecords(func(rec model.CheckoutRecord) bool {
		return rec.CheckedOutBy == claims.UserID
	})
	jsonResponse(w, http.StatusOK, map[string]any{"items": records})
}

// activeCheckouts handles GET /items/checkouts.
func (s *Server) activeCheckouts(w http.ResponseWriter, r *http.Request) {
	records := s.activeRecords(func(model.CheckoutRecord) bool { return true })
	jsonResponse(w, http.StatusOK, map[string]any{"items": records})
}

// activeRecords returns the unreturned checkouts that match keep, oldest first.
func (s *Server) activeRecords(keep func(model.CheckoutRecord) bool) []model.CheckoutRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := []model.CheckoutRecord{}
	for _, history := range s.history {
		for _, rec := range history {
			if rec.ReturnedAt == nil && keep(rec) {
				records = append(records, rec)
			}
		}
	}
	slices.SortFunc(records, func(a, b model.CheckoutRecord) int { return a.CheckedOutAt.Compare(b.CheckedOutAt) })
	return records
}
