// Package router maps application paths to pages and guards the ones that
// need an authenticated session.
package router

import (
	"net/url"
	"strings"
)

// Access controls who may enter a route
type Access int

const (
	// Public routes are open to everyone
	Public Access = iota
	// Protected routes require an authenticated session
	Protected
	// GuestOnly routes are for anonymous users; signed-in users are sent on
	GuestOnly
)

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
	NotFoundPath  = "*"
	RedirectParam = "redirect"
)

// Route binds a path to a page name
type Route struct {
	Path   string
	Page   string
	Title  string
	Access Access
}

// DefaultRoutes is the application's route table
var DefaultRoutes = []Route{
	{Path: "/", Page: "home", Title: "Home", Access: Public},
	{Path: "/login", Page: "login", Title: "Sign in", Access: GuestOnly},
	{Path: "/register", Page: "register", Title: "Create account", Access: GuestOnly},
	{Path: "/dashboard", Page: "dashboard", Title: "Dashboard", Access: Protected},
	{Path: "/dashboard/users", Page: "users", Title: "Users", Access: Protected},
}

var notFound = Route{Path: NotFoundPath, Page: "not-found", Title: "Page not found", Access: Public}

// AuthContext is the part of the auth state the guard reads
type AuthContext struct {
	IsAuthenticated bool
}

// Navigation is the outcome of resolving a path. Exactly one of Route and
// Redirect is meaningful: when Redirect is set the caller should navigate
// there instead.
type Navigation struct {
	Route    Route
	Redirect string
	NotFound bool
}

// Router resolves paths against a route table
type Router struct {
	routes map[string]Route
	order  []Route
}

// New creates a router over routes
func New(routes []Route) *Router {
	r := &Router{routes: make(map[string]Route, len(routes))}
	for _, rt := range routes {
		r.routes[rt.Path] = rt
		r.order = append(r.order, rt)
	}
	return r
}

// Default returns a router over DefaultRoutes
func Default() *Router {
	return New(DefaultRoutes)
}

// Routes returns the route table in declaration order
func (r *Router) Routes() []Route {
	out := make([]Route, len(r.order))
	copy(out, r.order)
	return out
}

// Match returns the route for path, ignoring any query string and
// trailing slash.
func (r *Router) Match(path string) (Route, bool) {
	rt, ok := r.routes[normalize(path)]
	return rt, ok
}

// Navigate resolves target for the given auth state. It performs no I/O.
func (r *Router) Navigate(target string, auth AuthContext) Navigation {
	path, query := splitTarget(target)

	rt, ok := r.routes[path]
	if !ok {
		return Navigation{Route: notFound, NotFound: true}
	}

	switch rt.Access {
	case Protected:
		if !auth.IsAuthenticated {
			return Navigation{Redirect: LoginRedirect(target)}
		}
	case GuestOnly:
		if auth.IsAuthenticated {
			return Navigation{Redirect: returnTarget(query)}
		}
	}
	return Navigation{Route: rt}
}

// LoginRedirect builds the login URL carrying target as the return path
func LoginRedirect(target string) string {
	q := url.Values{}
	q.Set(RedirectParam, target)
	return LoginPath + "?" + q.Encode()
}

// returnTarget picks where a signed-in user lands after a guest-only page:
// the carried redirect if it is a local path, otherwise the dashboard.
func returnTarget(query url.Values) string {
	dest := query.Get(RedirectParam)
	// Browsers read "/\host" like "//host", so both leave the app
	if dest == "" || !strings.HasPrefix(dest, "/") || strings.HasPrefix(dest, "//") || strings.HasPrefix(dest, "/\\") {
		return DashboardPath
	}
	return dest
}

func splitTarget(target string) (string, url.Values) {
	u, err := url.Parse(target)
	if err != nil {
		return normalize(target), url.Values{}
	}
	return normalize(u.Path), u.Query()
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
