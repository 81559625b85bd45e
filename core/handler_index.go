package core

import "net/http"

const banner = `favicon proxy

Usage: GET /domain.com

Responds with the favicon of domain.com as image/x-icon and
Access-Control-Allow-Origin: *.
`

// IndexHandler serves the usage banner.
// Endpoint: GET /
func IndexHandler(w http.ResponseWriter, r *http.Request) {
	WriteText(w, http.StatusOK, banner)
}
