package core

import "net/http"

// FaviconHandler handles requests for the service's own /favicon.ico by
// returning a 204 No Content. Browsers ask for it automatically.
func FaviconHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusNoContent)
}
