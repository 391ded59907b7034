// Package guard decides, before every navigation, whether the visitor may
// enter a route or is sent elsewhere.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/catalog"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/tokenstore"
)

// Decision is the outcome of a navigation check. Redirect is empty when the
// navigation is allowed.
type Decision struct {
	To       Destination
	Redirect RouteName
}

// Allowed reports whether navigation proceeds unchanged.
func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

func (d Decision) String() string {
	if d.Allowed() {
		return "allow " + string(d.To.Name)
	}
	return fmt.Sprintf("redirect %s -> %s", d.To.Name, d.Redirect)
}

// Decide applies the access rules to an already resolved session.
// A nil user is an anonymous visitor.
func Decide(user *model.User, to Destination) Decision {
	d := Decision{To: to}
	switch {
	case to.RequiresAuth() && user == nil:
		d.Redirect = Login
	case to.RequiresAdmin() && !user.IsAdmin():
		d.Redirect = Dashboard
	case to.Name == Login && user != nil:
		d.Redirect = Dashboard
	}
	return d
}

// SessionState tracks what the guard knows about the session.
type SessionState int

const (
	Unresolved SessionState = iota
	Resolving
	ResolvedAnonymous
	ResolvedUser
	ResolvedAdmin
)

func (s SessionState) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Resolving:
		return "resolving"
	case ResolvedAnonymous:
		return "anonymous"
	case ResolvedUser:
		return "user"
	case ResolvedAdmin:
		return "admin"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

func stateFor(u *model.User) SessionState {
	switch {
	case u == nil:
		return ResolvedAnonymous
	case u.IsAdmin():
		return ResolvedAdmin
	default:
		return ResolvedUser
	}
}

// ExpiryPolicy selects how an expired access token is noticed.
type ExpiryPolicy string

const (
	// ExpiryLazy leaves the session alone; expiry shows up as a failed request.
	ExpiryLazy ExpiryPolicy = "lazy"
	// ExpiryReactive checks the token's exp claim before each navigation and
	// drops the session user once it has passed.
	ExpiryReactive ExpiryPolicy = "reactive"
)

// ParseExpiryPolicy parses a policy name. The empty string means lazy.
func ParseExpiryPolicy(s string) (ExpiryPolicy, error) {
	switch ExpiryPolicy(s) {
	case "", ExpiryLazy:
		return ExpiryLazy, nil
	case ExpiryReactive:
		return ExpiryReactive, nil
	}
	return "", fmt.Errorf("unknown session expiry policy %q", s)
}

// Session is the state the guard reads and the one lookup it may trigger.
// *catalog.Store implements it.
type Session interface {
	GetCurrentUser(ctx context.Context)
	ClearSession()
	State() catalog.State
}

// Guard runs the navigation check. The session is resolved at most once per
// Guard unless Invalidate is called.
type Guard struct {
	session Session
	router  *Router
	policy  ExpiryPolicy
	tokens  tokenstore.Source
	now     func() time.Time
	logger  *slog.Logger

	mu    sync.Mutex
	state SessionState
	gen   uint64
	done  chan struct{}
}

// Option configures a Guard.
type Option func(*Guard)

// WithRouter replaces the default route table.
func WithRouter(r *Router) Option {
	return func(g *Guard) { g.router = r }
}

// WithExpiryPolicy sets the policy. Reactive expiry reads the token from tokens.
func WithExpiryPolicy(p ExpiryPolicy, tokens tokenstore.Source) Option {
	return func(g *Guard) {
		g.policy = p
		g.tokens = tokens
	}
}

// WithClock sets the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// New creates a Guard over session.
func New(session Session, opts ...Option) *Guard {
	g := &Guard{
		session: session,
		policy:  ExpiryLazy,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.router == nil {
		g.router = MustNewRouter(DefaultRoutes())
	}
	return g
}

// Router returns the route table the guard resolves paths with.
func (g *Guard) Router() *Router {
	return g.router
}

// State returns what the guard currently knows about the session.
func (g *Guard) State() SessionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Invalidate forgets the resolved session so the next navigation looks it up again.
func (g *Guard) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	g.state = Unresolved
}

// Before checks a navigation to path. It fails only when path matches no
// route or ctx ends while waiting for another caller's session lookup.
func (g *Guard) Before(ctx context.Context, path string) (Decision, error) {
	to, err := g.router.Resolve(path)
	if err != nil {
		return Decision{}, err
	}

	if g.policy == ExpiryReactive {
		g.expireSession(ctx)
	}

	if err := g.resolve(ctx); err != nil {
		return Decision{}, err
	}

	d := Decide(g.session.State().CurrentUser, to)
	g.logger.DebugContext(ctx, "navigation", "path", path, "decision", d.String())
	return d, nil
}

// expireSession drops the session user when the stored token has expired
// and marks the session anonymous without probing the server.
func (g *Guard) expireSession(ctx context.Context) {
	if g.tokens == nil {
		return
	}
	token, err := g.tokens.Token(ctx)
	if err != nil {
		g.logger.WarnContext(ctx, "reading access token", "error", err)
		return
	}
	if token == "" || !auth.Expired(token, g.now()) {
		return
	}

	g.logger.InfoContext(ctx, "access token expired, clearing session")
	g.session.ClearSession()

	g.mu.Lock()
	g.gen++
	g.state = ResolvedAnonymous
	g.mu.Unlock()
}

// resolve looks up the session once. Concurrent callers wait for the lookup
// already in flight.
func (g *Guard) resolve(ctx context.Context) error {
	g.mu.Lock()
	switch g.state {
	case Resolving:
		done := g.done
		g.mu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case Unresolved:
	default:
		g.mu.Unlock()
		return nil
	}

	g.state = Resolving
	gen := g.gen
	done := make(chan struct{})
	g.done = done
	g.mu.Unlock()

	// The lookup outlives the first caller's ctx; every waiter shares its result.
	g.session.GetCurrentUser(context.WithoutCancel(ctx))
	resolved := stateFor(g.session.State().CurrentUser)

	g.mu.Lock()
	if g.gen == gen {
		g.state = resolved
	}
	close(done)
	g.mu.Unlock()

	g.logger.DebugContext(ctx, "session resolved", "state", resolved.String())
	return nil
}
