package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// registerResources mounts the read-only views. Each answers with the same
// Result envelope as the operations.
func (s *Server) registerResources(api *mux.Router) {
	b := s.b
	res := api.PathPrefix("/resources").Subrouter()
	res.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				writeError(w, s.log, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "resources are read-only", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	s.resource(res, "/inbox/emails", func(ctx context.Context, r *http.Request) (Result, error) {
		return records(b.RecentEmails(ctx, queryLimit(r)))
	})
	s.resource(res, "/inbox/unread", func(ctx context.Context, r *http.Request) (Result, error) {
		return records(b.UnreadEmails(ctx, queryLimit(r)))
	})
	s.resource(res, "/email/{entry_id}", func(ctx context.Context, r *http.Request) (Result, error) {
		e, err := b.Mail.Get(ctx, mux.Vars(r)["entry_id"])
		if err != nil {
			return Result{}, err
		}
		return recordResult(e), nil
	})
	s.resource(res, "/calendar/today", func(ctx context.Context, r *http.Request) (Result, error) {
		return records(b.EventsToday(ctx))
	})
	s.resource(res, "/calendar/week", func(ctx context.Context, r *http.Request) (Result, error) {
		return records(b.EventsThisWeek(ctx))
	})
	s.resource(res, "/tasks/active", func(ctx context.Context, r *http.Request) (Result, error) {
		return records(b.ActiveTasks(ctx))
	})
	s.resource(res, "/tasks/all", func(ctx context.Context, r *http.Request) (Result, error) {
		return records(b.AllTasks(ctx))
	})
}

func (s *Server) resource(r *mux.Router, path string, fn func(context.Context, *http.Request) (Result, error)) {
	r.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		result, err := fn(req.Context(), req)
		if err != nil {
			writeBridgeError(w, s.log, err)
			return
		}
		writeJSONResponse(w, s.log, result, http.StatusOK)
	})
}

// queryLimit reads ?limit=; anything unparsable falls back to the default.
func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}
