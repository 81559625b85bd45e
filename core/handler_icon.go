package core

import (
	"io"
	"net/http"
)

// IconHandler resolves the favicon of the domain named by the request path
// and streams it to the client.
// Endpoint: GET /{domain}
// Authenticated: No
func (a *App) IconHandler(w http.ResponseWriter, r *http.Request) {
	verdict, err := a.guard.Check(r)
	if rec, ok := w.(*ResponseRecorder); ok {
		rec.RequestID = verdict.RequestID
	}
	if err != nil {
		writeFailure(w, err)
		return
	}

	out, err := a.resolver.Resolve(r.Context(), verdict.Domain)
	if err != nil {
		a.logger.Debug("icon not resolved",
			"domain", verdict.Domain,
			"request_id", verdict.RequestID,
			"err", err)
		writeFailure(w, err)
		return
	}
	defer out.Close()

	setHeaders(w, headersIcon)
	w.WriteHeader(http.StatusOK)

	// Headers are gone, an interrupted stream can only be logged.
	if _, err := io.Copy(w, out.Body); err != nil {
		a.logger.Warn("icon stream interrupted",
			"domain", verdict.Domain,
			"url", out.URL,
			"request_id", verdict.RequestID,
			"err", err)
	}
}
