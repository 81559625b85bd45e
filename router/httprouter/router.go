package httprouter

import (
	"net/http"

	"github.com/caasmo/faviconproxy/router"
	jshttprouter "github.com/julienschmidt/httprouter"
)

// Implementation of the router interface
type Router struct {
	rt *jshttprouter.Router
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.rt.ServeHTTP(w, req)
}

func (r *Router) Handle(path string, handler http.Handler) {
	r.rt.Handler(http.MethodGet, path, handler)
}

func (r *Router) HandleFunc(path string, handler func(http.ResponseWriter, *http.Request)) {
	r.rt.Handler(http.MethodGet, path, http.HandlerFunc(handler))
}

// Fallback receives every request no registered path matches, whatever its
// method.
func (r *Router) Fallback(handler http.Handler) {
	r.rt.NotFound = handler
}

// New returns a router that never rewrites paths: "/a.com/" must reach the
// fallback as is instead of being redirected.
func New() router.Router {
	rt := jshttprouter.New()
	rt.RedirectTrailingSlash = false
	rt.RedirectFixedPath = false
	rt.HandleMethodNotAllowed = false
	rt.HandleOPTIONS = false
	return &Router{rt: rt}
}
