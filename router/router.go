package router

import (
	"net/http"
)

// Router registers GET handlers on fixed paths. Requests matching no path
// go to the fallback handler.
type Router interface {
	http.Handler
	Handle(path string, handler http.Handler)
	HandleFunc(path string, handler func(http.ResponseWriter, *http.Request))
	Fallback(handler http.Handler)
}
