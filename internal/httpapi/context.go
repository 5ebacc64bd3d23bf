package httpapi

import (
	"context"
	"errors"
	"net/http"
)

// errShuttingDown is the cancel cause of a query released by shutdown.
var errShuttingDown = errors.New("server shutting down")

// queryContext derives the context a query waits under. It ends when the
// client goes away or base is canceled; in the latter case its cause is
// errShuttingDown.
func queryContext(r *http.Request, base context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(r.Context())
	stop := context.AfterFunc(base, func() { cancel(errShuttingDown) })
	return ctx, func() {
		stop()
		cancel(nil)
	}
}
