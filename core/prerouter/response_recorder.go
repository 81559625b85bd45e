package prerouter

import (
	"net/http"
	"time"

	"github.com/caasmo/faviconproxy/core"
	"github.com/juju/clock"
)

// Recorder wraps the ResponseWriter in a core.ResponseRecorder for the
// middlewares that run after it. It must be first in the chain.
type Recorder struct {
	clock clock.Clock
}

func NewRecorder(app *core.App) *Recorder {
	return &Recorder{
		clock: app.Clock(),
	}
}

// Execute initializes the shared recorder at the beginning of the chain
func (rc *Recorder) Execute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &core.ResponseRecorder{
			ResponseWriter: w,
			Status:         http.StatusOK, // Default to 200 OK
			StartTime:      rc.clock.Now(),
		}

		next.ServeHTTP(recorder, r)
	})
}

// elapsed is the time since the recorder was created, by the app clock.
func elapsed(clk clock.Clock, rec *core.ResponseRecorder) time.Duration {
	return clk.Now().Sub(rec.StartTime)
}
