package core

import (
	"errors"
	"net/http"

	"github.com/caasmo/faviconproxy/failure"
)

// headersText are set on every plain text response: failures and the banner.
var headersText = map[string]string{
	"Content-Type": "text/plain; charset=utf-8",

	// Ensure the browser respects the declared content type strictly.
	"X-Content-Type-Options": "nosniff",

	"Cache-Control": "no-store",
}

// headersIcon are set on a streamed icon. The whole point of the service is
// letting any origin read the bytes.
var headersIcon = map[string]string{
	"Content-Type":                "image/x-icon",
	"Access-Control-Allow-Origin": "*",
	"X-Content-Type-Options":      "nosniff",
}

func setHeaders(w http.ResponseWriter, headers map[string]string) {
	for k, v := range headers {
		w.Header().Set(k, v)
	}
}

// statusFor maps a failure to the status sent to the client. Guard failures
// keep their own codes; anything else from the pipeline is a 500.
func statusFor(err error) int {
	var fe *failure.Error
	if !errors.As(err, &fe) {
		return http.StatusInternalServerError
	}

	switch fe.Kind {
	case failure.KindUsage, failure.KindNoFavicon:
		return http.StatusNotFound
	case failure.KindSelfReference, failure.KindBannedReferrer:
		return http.StatusForbidden
	case failure.KindThrottled:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteText writes a plain text response that is never cached.
func WriteText(w http.ResponseWriter, status int, body string) {
	setHeaders(w, headersText)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// writeFailure writes the literal reason of err with its mapped status.
func writeFailure(w http.ResponseWriter, err error) {
	WriteText(w, statusFor(err), err.Error())
}
