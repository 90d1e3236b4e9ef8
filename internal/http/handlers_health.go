package http

import (
	"context"
	"net/http"
	"sort"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady runs every dependency check and answers 503 if any fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := make(map[string]string, len(s.checks)+1)

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	if s.store != nil {
		names = append([]string{"store"}, names...)
	}
	for _, name := range names {
		var err error
		if name == "store" && s.store != nil {
			err = s.store.Ping(ctx)
		} else {
			err = s.checks[name](ctx)
		}
		if err != nil {
			checks[name] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}
