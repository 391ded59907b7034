// Package catalog holds the client's shared catalog and session state.
//
// Every mutation follows write-then-refetch: the server call is made, and
// only once it succeeds the current page is fetched again. Items are never
// patched locally.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/erazemk/izposoja/internal/errmsg"
	"github.com/erazemk/izposoja/internal/model"
)

//go:generate mockgen -source=store.go -destination=mocks/api_mock.go -package=mocks API

// DefaultItemsPerPage is the page size used unless WithItemsPerPage is given.
const DefaultItemsPerPage = 10

// API is the part of the backend client the store uses. *api.Client
// implements it.
type API interface {
	ListItems(ctx context.Context, limit, offset int) (*model.PaginatedItemResponse, error)
	CreateItem(ctx context.Context, req model.ItemRequest) error
	CheckoutItem(ctx context.Context, itemID uuid.UUID) error
	ReturnItem(ctx context.Context, itemID, checkoutID uuid.UUID) error
	UpdateItem(ctx context.Context, itemID uuid.UUID, req model.ItemRequest) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	CurrentUser(ctx context.Context) (*model.User, error)
}

// State is a snapshot of the store. Error is empty when the last operation
// did not fail.
type State struct {
	Items       []model.Item
	CurrentUser *model.User
	Loading     bool
	Error       string
	model.Pagination
}

// Store is the single source of truth for catalog and session state. It is
// safe for concurrent use. Concurrent operations are not queued: each runs
// its own sequence of state writes and the last write wins, but a reader
// never sees half of a page applied.
type Store struct {
	api        API
	normalizer *errmsg.Normalizer
	validate   *validator.Validate
	logger     *slog.Logger

	mu    sync.RWMutex
	state State
	subs  map[chan State]struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithItemsPerPage sets the page size. Values below 1 are ignored.
func WithItemsPerPage(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.state.ItemsPerPage = n
		}
	}
}

// WithNormalizer sets how failures are turned into the Error message.
func WithNormalizer(n *errmsg.Normalizer) Option {
	return func(s *Store) { s.normalizer = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a store backed by api.
func New(api API, opts ...Option) *Store {
	s := &Store{
		api:        api,
		normalizer: errmsg.Default(),
		validate:   validator.New(),
		logger:     slog.Default(),
		subs:       make(map[chan State]struct{}),
		state: State{
			Pagination: model.Pagination{CurrentPage: 1, ItemsPerPage: DefaultItemsPerPage},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel that receives a snapshot after every state
// change. A slow reader only ever sees the newest snapshot. Call cancel to
// stop receiving; the channel is then closed.
func (s *Store) Subscribe() (updates <-chan State, cancel func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			close(ch)
			s.mu.Unlock()
		})
	}
}

// FetchItems loads the given page (1-based; smaller values mean 1). A
// failure is recorded in Error and not returned.
func (s *Store) FetchItems(ctx context.Context, page int) {
	page = max(page, 1)

	s.begin()
	defer s.finish()

	s.mu.RLock()
	limit := s.state.ItemsPerPage
	offset := s.state.Offset(page)
	s.mu.RUnlock()

	resp, err := s.api.ListItems(ctx, limit, offset)
	if err != nil {
		s.recordFailure(ctx, "fetch items", err)
		return
	}

	s.update(func(st *State) {
		st.Items = slices.Clone(resp.Items)
		st.TotalItems = resp.Total
		st.CurrentPage = page
	})
	s.logger.DebugContext(ctx, "fetched items", "page", page, "count", len(resp.Items), "total", resp.Total)
}

// CreateItem creates an item and refreshes the current page.
func (s *Store) CreateItem(ctx context.Context, req model.ItemRequest) error {
	return s.mutate(ctx, "create item", func(ctx context.Context) error {
		if err := s.validateRequest(req); err != nil {
			return err
		}
		return s.api.CreateItem(ctx, req)
	})
}

// CheckoutItem checks an item out to the current user and refreshes the
// current page.
func (s *Store) CheckoutItem(ctx context.Context, itemID uuid.UUID) error {
	return s.mutate(ctx, "checkout item", func(ctx context.Context) error {
		return s.api.CheckoutItem(ctx, itemID)
	})
}

// ReturnItem closes a checkout and refreshes the current page.
func (s *Store) ReturnItem(ctx context.Context, itemID, checkoutID uuid.UUID) error {
	return s.mutate(ctx, "return item", func(ctx context.Context) error {
		return s.api.ReturnItem(ctx, itemID, checkoutID)
	})
}

// UpdateItem changes an item and refreshes the current page. Changing the
// category of an item on the current page fails without a server call.
func (s *Store) UpdateItem(ctx context.Context, itemID uuid.UUID, req model.ItemRequest) error {
	return s.mutate(ctx, "update item", func(ctx context.Context) error {
		if err := s.validateRequest(req); err != nil {
			return err
		}
		if current, ok := s.itemOnPage(itemID); ok && current.Category() != req.Category() {
			return fmt.Errorf("%w: %s to %s", model.ErrCategoryChange, current.Category(), req.Category())
		}
		return s.api.UpdateItem(ctx, itemID, req)
	})
}

// DeleteItem removes an item and refreshes the current page.
func (s *Store) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return s.mutate(ctx, "delete item", func(ctx context.Context) error {
		return s.api.DeleteItem(ctx, itemID)
	})
}

// GetCurrentUser resolves the session user. An anonymous visitor is an
// expected outcome, so a failure leaves CurrentUser as it was and neither
// Loading nor Error is touched.
func (s *Store) GetCurrentUser(ctx context.Context) {
	u, err := s.api.CurrentUser(ctx)
	if err != nil {
		s.logger.DebugContext(ctx, "resolving current user failed", "error", err)
		return
	}

	user := *u
	s.update(func(st *State) { st.CurrentUser = &user })
}

// ClearSession forgets the session user.
func (s *Store) ClearSession() {
	s.update(func(st *State) { st.CurrentUser = nil })
}

// mutate runs call under the shared state contract and refetches the current
// page when it succeeds. The failure is recorded and returned.
func (s *Store) mutate(ctx context.Context, name string, call func(context.Context) error) error {
	s.begin()
	defer s.finish()

	if err := call(ctx); err != nil {
		s.recordFailure(ctx, name, err)
		return err
	}

	s.mu.RLock()
	page := s.state.CurrentPage
	s.mu.RUnlock()

	s.FetchItems(ctx, page)
	return nil
}

func (s *Store) begin() {
	s.update(func(st *State) {
		st.Loading = true
		st.Error = ""
	})
}

func (s *Store) finish() {
	s.update(func(st *State) { st.Loading = false })
}

func (s *Store) recordFailure(ctx context.Context, op string, err error) {
	msg := s.normalizer.Normalize(err)
	s.update(func(st *State) { st.Error = msg })
	s.logger.WarnContext(ctx, op+" failed", "error", err)
}

func (s *Store) validateRequest(req model.ItemRequest) error {
	if req == nil {
		return fmt.Errorf("%w: missing request", model.ErrUnknownCategory)
	}
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid %s item: %w", req.Category(), err)
	}
	return nil
}

func (s *Store) itemOnPage(id uuid.UUID) (model.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.state.Items {
		if item.Base().ID == id {
			return item, true
		}
	}
	return nil, false
}

// update applies fn under the write lock and notifies subscribers.
func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)

	snap := s.snapshotLocked()
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (s *Store) snapshotLocked() State {
	snap := s.state
	if s.state.Items != nil {
		snap.Items = make([]model.Item, len(s.state.Items))
		for i, item := range s.state.Items {
			snap.Items[i] = model.CloneItem(item)
		}
	}
	if s.state.CurrentUser != nil {
		u := *s.state.CurrentUser
		snap.CurrentUser = &u
	}
	return snap
}
