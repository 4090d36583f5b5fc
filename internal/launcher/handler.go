package launcher

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// ServeHTTP implements GET /: redirect to the dependent service once it is
// reachable. Startup failures are answered with a plain-text 200 so that the
// browser is never redirected to a dead address.
func (l *Launcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("launcher request panicked", "panic", rec)
			writeText(w, fmt.Sprintf("Error starting front-end: %v", rec))
		}
	}()

	err := l.EnsureStarted(r.Context())
	switch {
	case err == nil:
		http.Redirect(w, r, l.TargetURL(), http.StatusFound)
	case errors.Is(err, ErrStartupTimeout):
		writeText(w, fmt.Sprintf("Front-end failed to start within %d seconds", l.cfg.TimeoutSeconds))
	default:
		slog.Error("launcher failed to start dependent service", "err", err)
		writeText(w, "Error starting front-end: "+err.Error())
	}
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
