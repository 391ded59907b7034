// Package apitest runs an in-memory backend that speaks the catalog REST
// contract, for use in tests of the client, the store and the guard.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/model"
)

// BasePath is the prefix every route is served under.
const BasePath = "/api/v1"

// Routes, as passed to Count and FailNext.
const (
	RouteLogin      = "POST /auth/login"
	RouteMe         = "GET /users/me"
	RouteListItems  = "GET /items"
	RouteCreateItem = "POST /items"
	RouteGetItem    = "GET /items/{item_id}"
	RouteUpdateItem = "PUT /items/{item_id}"
	RouteDeleteItem = "DELETE /items/{item_id}"
	RouteCheckout   = "POST /items/{item_id}/checkouts"
	RouteReturn     = "PUT /items/{item_id}/checkouts/{checkout_id}/returned"
	RouteHistory    = "GET /items/{item_id}/checkout-history"

	RouteActiveCheckouts = "GET /items/checkouts"
	RouteMyCheckouts     = "GET /users/me/checkouts"
	RouteListUsers       = "GET /users"
	RouteCreateUser      = "POST /users"
	RouteDeleteUser      = "DELETE /users/{user_id}"
	RouteUpdateUserRole  = "PUT /users/{user_id}/role"
)

// DefaultLimit is the page size used when a list request has no limit.
const DefaultLimit = 20

type account struct {
	user         model.User
	passwordHash []byte
}

type failure struct {
	status  int
	message string
}

// Server is an in-memory catalog backend.
type Server struct {
	// URL is the base URL clients should be configured with, BasePath included.
	URL string

	secret   string
	validate *validator.Validate

	mu          sync.Mutex
	users       map[uuid.UUID]*account
	items       map[uuid.UUID]model.Item
	order       []uuid.UUID
	history     map[uuid.UUID][]model.CheckoutRecord
	counts      map[string]int
	failures    map[string]failure
	authHeaders []string
	requestIDs  []string
}

// New starts a Server on a local port and stops it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := NewServer("apitest-secret")
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	s.URL = srv.URL + BasePath
	return s
}

// NewServer returns a Server that signs tokens with secret. Use Handler to
// serve it.
func NewServer(secret string) *Server {
	return &Server{
		secret:   secret,
		validate: validator.New(),
		users:    make(map[uuid.UUID]*account),
		items:    make(map[uuid.UUID]model.Item),
		history:  make(map[uuid.UUID][]model.CheckoutRecord),
		counts:   make(map[string]int),
		failures: make(map[string]failure),
	}
}

// Handler returns the HTTP handler serving every route under BasePath.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	handle := func(route string, h http.HandlerFunc, authenticated bool) {
		method, path, _ := strings.Cut(route, " ")
		var handler http.Handler = h
		if authenticated {
			handler = s.authMiddleware(handler)
		}
		mux.Handle(method+" "+BasePath+path, s.track(route, handler))
	}

	// Public: login.
	handle(RouteLogin, s.login, false)

	handle(RouteMe, s.me, true)

	handle(RouteListItems, s.listItems, true)
	handle(RouteCreateItem, s.createItem, true)
	handle(RouteGetItem, s.getItem, true)
	handle(RouteUpdateItem, s.updateItem, true)
	handle(RouteDeleteItem, s.deleteItem, true)

	handle(RouteCheckout, s.checkoutItem, true)
	handle(RouteReturn, s.returnItem, true)
	handle(RouteHistory, s.checkoutHistory, true)
	handle(RouteActiveCheckouts, s.activeCheckouts, true)
	handle(RouteMyCheckouts, s.myCheckouts, true)

	handle(RouteListUsers, s.listUsers, true)
	handle(RouteCreateUser, s.createUser, true)
	handle(RouteDeleteUser, s.deleteUser, true)
	handle(RouteUpdateUserRole, s.updateUserRole, true)

	return mux
}

// AddUser registers an account that can log in with email and password.
func (s *Server) AddUser(name, email, password string, role model.Role) model.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic("apitest: hashing password: " + err.Error())
	}

	u := model.User{ID: uuid.New(), Name: name, Email: email, Role: role}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &account{user: u, passwordHash: hash}
	return u
}

// User returns the stored account with id.
func (s *Server) User(id uuid.UUID) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.users[id]
	if !ok {
		return model.User{}, false
	}
	return a.user, true
}

// RemoveUser deletes an account. Tokens issued to it stop working.
func (s *Server) RemoveUser(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// IssueToken returns a token for u valid for ttl (TokenExpiry if zero).
// A negative ttl yields an already expired token.
func (s *Server) IssueToken(u model.User, ttl time.Duration) string {
	token, err := auth.GenerateToken(s.secret, u.ID, u.Name, string(u.Role), ttl)
	if err != nil {
		panic("apitest: issuing token: " + err.Error())
	}
	return token
}

// AddItem stores item as is, assigning an ID if it has none.
func (s *Server) AddItem(item model.Item) model.Item {
	base := item.Base()
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
		item = withBase(item, base)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[base.ID]; !exists {
		s.order = append(s.order, base.ID)
	}
	s.items[base.ID] = item
	return item
}

// Item returns the stored item with id.
func (s *Server) Item(id uuid.UUID) (model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	return item, ok
}

// Items returns every stored item in insertion order.
func (s *Server) Items() []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]model.Item, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, s.items[id])
	}
	return items
}

// Count returns how many requests reached route.
func (s *Server) Count(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[route]
}

// ResetCounts zeroes every request counter and clears recorded headers.
func (s *Server) ResetCounts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.counts)
	s.authHeaders = nil
	s.requestIDs = nil
}

// FailNext makes the next request to route fail with status and message
// without touching any state. An empty message sends no body.
func (s *Server) FailNext(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, message: message}
}

// AuthHeaders returns the Authorization header of every request, in order.
func (s *Server) AuthHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.authHeaders)
}

// RequestIDs returns the X-Request-ID header of every request, in order.
func (s *Server) RequestIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requestIDs)
}

// withBase returns item with its common fields replaced by base.
func withBase(item model.Item, base model.ItemBase) model.Item {
	switch v := item.(type) {
	case model.General:
		v.ItemBase = base
		return v
	case model.Book:
		v.ItemBase = base
		return v
	case model.Laptop:
		v.ItemBase = base
		return v
	}
	return item
}

// buildItem creates the item described by req.
func buildItem(id uuid.UUID, req model.ItemRequest, checkout *model.Checkout) model.Item {
	switch r := req.(type) {
	case model.GeneralRequest:
		return model.General{ItemBase: model.ItemBase{ID: id, Name: r.Name, Description: r.Description, Checkout: checkout}}
	case model.BookRequest:
		return model.Book{
			ItemBase: model.ItemBase{ID: id, Name: r.Name, Description: r.Description, Checkout: checkout},
			Author:   r.Author,
			ISBN:     r.ISBN,
		}
	case model.LaptopRequest:
		return model.Laptop{
			ItemBase:   model.ItemBase{ID: id, Name: r.Name, Description: r.Description, Checkout: checkout},
			MACAddress: r.MACAddress,
		}
	}
	return nil
}
