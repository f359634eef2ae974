// Package server exposes the bridge operations over HTTP as a small
// remote-procedure surface: POST /api/operations/{name} with a flat JSON object
// of parameters, plus a handful of read-only resources.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"mailbridge/internal/bridge"
)

const DefaultAddr = "127.0.0.1:8765"

type Options struct {
	Addr           string
	AllowedOrigins []string
	// Token is the bearer token required on every route but /api/health.
	// Empty disables authentication.
	Token string
	// RateLimit is requests per second across all clients; zero disables it.
	RateLimit    float64
	Burst        int
	MaxBodyBytes int64
	Logger       *slog.Logger
	Location     *time.Location
}

type Server struct {
	b    *bridge.Bridge
	opts Options
	log  *slog.Logger
	ops  map[string]operation
}

func New(b *bridge.Bridge, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodySize
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	s := &Server{b: b, opts: opts, log: opts.Logger}
	s.ops = make(map[string]operation)
	for _, op := range s.operations() {
		s.ops[op.Name] = op
	}
	return s
}

// Handler builds the routed and wrapped handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/operations", s.handleListOperations).Methods(http.MethodGet)
	api.HandleFunc("/operations/{name}", s.handleOperation).Methods(http.MethodPost)
	s.registerResources(api)

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, s.log, http.StatusNotFound, "NOT_FOUND", "no such route", map[string]any{"path": r.URL.Path})
	})

	var limiter *rate.Limiter
	if s.opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.opts.RateLimit), s.opts.Burst)
	}

	var h http.Handler = r
	h = RequestSizeLimitMiddleware(s.opts.MaxBodyBytes)(h)
	h = s.requireToken(h)
	h = s.throttle(limiter)(h)
	h = s.requestLogger(h)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: false,
	})
	return c.Handler(h)
}

// Serve listens until ctx is cancelled, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", s.opts.Addr, "auth", s.opts.Token != "")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, s.log, map[string]any{
		"status": "ok",
		"time":   time.Now().In(s.opts.Location).Format(time.RFC3339),
	}, http.StatusOK)
}

func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, s.log, map[string]any{"operations": s.operations()}, http.StatusOK)
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	op, ok := s.ops[name]
	if !ok {
		writeError(w, s.log, http.StatusNotFound, "UNKNOWN_OPERATION",
			"unknown operation "+name, map[string]any{"operation": name})
		return
	}

	raw, err := decodeParams(r.Body)
	if err != nil {
		if s.handleMaxBytesError(w, r, err) {
			return
		}
		writeError(w, s.log, http.StatusBadRequest, "INVALID_JSON", "request body must be a JSON object",
			map[string]any{"reason": err.Error()})
		return
	}

	p := &params{op: name, raw: raw, loc: s.opts.Location}
	result, err := op.run(r.Context(), p)
	if err == nil {
		err = p.err
	}
	if err != nil {
		writeBridgeError(w, s.log, err)
		return
	}
	s.log.Debug("operation done", "request_id", requestID(r.Context()), "operation", name, "kind", result.Kind)
	writeJSONResponse(w, s.log, result, http.StatusOK)
}

// decodeParams reads an optional JSON object. An empty body is no params.
func decodeParams(body io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}
