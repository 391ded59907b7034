package guard

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

// ErrNoRoute is returned when no route matches a path.
var ErrNoRoute = errors.New("no route matches path")

// RouteName identifies a route independently of its path.
type RouteName string

const (
	Login     RouteName = "Login"
	Dashboard RouteName = "Dashboard"
	Admin     RouteName = "Admin"
	MyPage    RouteName = "MyPage"
)

// Meta is the access metadata a route declares.
type Meta struct {
	RequiresAuth  bool
	RequiresAdmin bool
}

// Route is one entry of the route table. A child's Path is always relative
// to its parent. A route with Redirect set only forwards to the named route.
type Route struct {
	Path     string
	Name     RouteName
	Meta     Meta
	Redirect RouteName
	Children []Route
}

// Destination is a resolved navigation target.
type Destination struct {
	Name   RouteName
	Path   string
	Params map[string]string
	// Matched is the chain of routes from the top level down to the target.
	Matched []Route
}

// RequiresAuth reports whether any route in the matched chain requires a
// logged-in user.
func (d Destination) RequiresAuth() bool {
	for _, r := range d.Matched {
		if r.Meta.RequiresAuth {
			return true
		}
	}
	return false
}

// RequiresAdmin reports whether any route in the matched chain requires the
// Admin role.
func (d Destination) RequiresAdmin() bool {
	for _, r := range d.Matched {
		if r.Meta.RequiresAdmin {
			return true
		}
	}
	return false
}

// DefaultRoutes returns the application's route table.
func DefaultRoutes() []Route {
	return []Route{
		{Path: "/", Redirect: Login},
		{Path: "/login", Name: Login},
		{Path: "/dashboard", Name: Dashboard, Meta: Meta{RequiresAuth: true}},
		{Path: "/admin", Name: Admin, Meta: Meta{RequiresAuth: true, RequiresAdmin: true}},
		{Path: "/mypage", Name: MyPage, Meta: Meta{RequiresAuth: true}},
	}
}

// Router resolves paths against a route table.
type Router struct {
	routes []Route
	paths  map[RouteName]string
}

// NewRouter validates routes and builds a Router. Names must be unique and
// every redirect must name an existing route.
func NewRouter(routes []Route) (*Router, error) {
	r := &Router{routes: routes, paths: make(map[RouteName]string)}

	var redirects []RouteName
	var walk func(prefix string, rs []Route) error
	walk = func(prefix string, rs []Route) error {
		for _, rt := range rs {
			full := joinPath(prefix, rt.Path)
			if rt.Name != "" {
				if _, dup := r.paths[rt.Name]; dup {
					return fmt.Errorf("duplicate route name %q", rt.Name)
				}
				r.paths[rt.Name] = full
			}
			if rt.Redirect != "" {
				redirects = append(redirects, rt.Redirect)
			}
			if err := walk(full, rt.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk("", routes); err != nil {
		return nil, err
	}

	for _, target := range redirects {
		if _, ok := r.paths[target]; !ok {
			return nil, fmt.Errorf("redirect to unknown route %q", target)
		}
	}
	return r, nil
}

// MustNewRouter is like NewRouter but panics on an invalid table.
func MustNewRouter(routes []Route) *Router {
	r, err := NewRouter(routes)
	if err != nil {
		panic(err)
	}
	return r
}

// PathOf returns the full path of the named route.
func (r *Router) PathOf(name RouteName) (string, bool) {
	p, ok := r.paths[name]
	return p, ok
}

// maxRedirects bounds redirect chains so a cycle cannot loop forever.
const maxRedirects = 8

// Resolve matches path against the table, following redirects. Segments
// starting with ':' match any value and are returned in Params.
func (r *Router) Resolve(path string) (Destination, error) {
	for range maxRedirects {
		chain, params, ok := match(r.routes, splitPath(path), nil, map[string]string{})
		if !ok {
			return Destination{}, fmt.Errorf("%w: %s", ErrNoRoute, path)
		}

		target := chain[len(chain)-1]
		if target.Redirect != "" {
			path = r.paths[target.Redirect]
			continue
		}
		return Destination{Name: target.Name, Path: path, Params: params, Matched: chain}, nil
	}
	return Destination{}, fmt.Errorf("too many redirects resolving %s", path)
}

// match finds the first route whose full path consumes all segments.
func match(routes []Route, segs []string, chain []Route, params map[string]string) ([]Route, map[string]string, bool) {
	for _, rt := range routes {
		own := splitPath(rt.Path)
		if len(own) > len(segs) {
			continue
		}

		bound := maps.Clone(params)
		ok := true
		for i, s := range own {
			if name, isParam := strings.CutPrefix(s, ":"); isParam {
				bound[name] = segs[i]
			} else if s != segs[i] {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}

		next := append(append([]Route(nil), chain...), rt)
		rest := segs[len(own):]
		if len(rest) == 0 && (rt.Name != "" || rt.Redirect != "") {
			return next, bound, true
		}
		if c, p, found := match(rt.Children, rest, next, bound); found {
			return c, p, true
		}
	}
	return nil, nil, false
}

func splitPath(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func joinPath(prefix, p string) string {
	return "/" + strings.Join(append(splitPath(prefix), splitPath(p)...), "/")
}
