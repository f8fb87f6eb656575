package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/felixgeelhaar/mediate/behavior"
	"github.com/felixgeelhaar/mediate/mediator"
	"github.com/felixgeelhaar/mediate/schema"
)

// HTTP serves a Dispatcher over HTTP.
type HTTP struct {
	addr         string
	dispatcher   Dispatcher
	readTimeout  time.Duration
	writeTimeout time.Duration
	maxBodyBytes int64
	logger       behavior.Logger

	shutdown   ShutdownConfig
	corsConfig *CORSConfig
	wsPath     string
	wsOpts     []WebSocketOption
	routes     []route

	mu         sync.RWMutex
	listenAddr string
	server     *http.Server
	drain      *ShutdownManager
	ws         *WebSocket
}

type route struct {
	pattern string
	handler http.Handler
}

// HTTPOption configures the HTTP transport.
type HTTPOption func(*HTTP)

// WithReadTimeout sets the read timeout for HTTP requests.
func WithReadTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.readTimeout = d
	}
}

// WithWriteTimeout sets the write timeout for HTTP responses.
func WithWriteTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.writeTimeout = d
	}
}

// WithMaxBodyBytes limits the size of request bodies. Larger bodies are
// rejected with 413 before decoding.
func WithMaxBodyBytes(n int64) HTTPOption {
	return func(h *HTTP) {
		h.maxBodyBytes = n
	}
}

// WithHTTPLogger sets the logger for server events.
func WithHTTPLogger(l behavior.Logger) HTTPOption {
	return func(h *HTTP) {
		h.logger = l
	}
}

// WithRoute mounts an additional handler, such as a metrics endpoint.
func WithRoute(pattern string, handler http.Handler) HTTPOption {
	return func(h *HTTP) {
		h.routes = append(h.routes, route{pattern: pattern, handler: handler})
	}
}

// WithWebSocket serves the frame protocol over WebSocket at path.
func WithWebSocket(path string, opts ...WebSocketOption) HTTPOption {
	return func(h *HTTP) {
		h.wsPath = path
		h.wsOpts = opts
	}
}

// NewHTTP creates a new HTTP transport for d.
func NewHTTP(addr string, d Dispatcher, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		addr:         addr,
		dispatcher:   d,
		readTimeout:  30 * time.Second,
		writeTimeout: 30 * time.Second,
		maxBodyBytes: 1 << 20,
		logger:       behavior.NopLogger{},
		shutdown:     DefaultShutdownConfig(),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.drain = NewShutdownManager(h.shutdown)
	if h.wsPath != "" {
		h.ws = NewWebSocket(d, h.wsOpts...)
	}

	return h
}

// Addr returns the configured address.
func (h *HTTP) Addr() string {
	return h.addr
}

// ListenAddr returns the actual address the server is listening on.
func (h *HTTP) ListenAddr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.listenAddr
}

// Serve starts the HTTP server and handles requests until ctx is canceled.
// On cancellation new requests are refused while in-flight requests drain,
// then the server is shut down.
func (h *HTTP) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	h.mu.Lock()
	h.listenAddr = listener.Addr().String()
	h.server = &http.Server{
		Handler:      h.Handler(),
		ReadTimeout:  h.readTimeout,
		WriteTimeout: h.writeTimeout,
	}
	server := h.server
	h.mu.Unlock()

	h.logger.Info("http transport listening", behavior.F("addr", listener.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdown.Timeout)
		defer cancel()

		if h.ws != nil {
			h.ws.Close()
		}
		if err := h.drain.Shutdown(shutdownCtx); err != nil {
			h.logger.Warn("drain incomplete", behavior.F("in_flight", h.drain.InFlightRequests()))
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		h.logger.Info("http transport stopped")
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler returns the router. It is what Serve serves and can be mounted or
// used with httptest directly.
func (h *HTTP) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if h.corsConfig != nil {
		r.Use(CORS(*h.corsConfig))
	}

	r.Get("/health", h.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(h.drain.Middleware)
		r.Get("/requests", h.handleList)
		r.Post("/requests/{name}", h.handleRequest)
		if h.ws != nil {
			r.Get(h.wsPath, h.ws.ServeHTTP)
		}
	})

	for _, rt := range h.routes {
		r.Handle(rt.pattern, rt.handler)
	}

	return r
}

func (h *HTTP) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if h.drain.IsDraining() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTP) handleList(w http.ResponseWriter, _ *http.Request) {
	descriptions := []RequestDescription{}
	if lister, ok := h.dispatcher.(Lister); ok {
		for _, info := range lister.Requests() {
			descriptions = append(descriptions, RequestDescription{
				Name:     info.Name,
				Category: string(info.Category),
				Schema:   schema.GenerateFromType(info.Request),
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string][]RequestDescription{"requests": descriptions})
}

// handleRequest decodes the body into the request registered under the
// {name} URL parameter and dispatches it.
func (h *HTTP) handleRequest(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, ErrBodyTooLarge)
			return
		}
		h.writeError(w, fmt.Errorf("%w: %v", ErrMalformedRequest, err))
		return
	}

	req, err := h.dispatcher.Decode(name, body)
	if err != nil {
		h.writeError(w, decodeError(err))
		return
	}

	md := headerMetadata(r.Header)
	if _, ok := md["X-Request-ID"]; !ok {
		if id := middleware.GetReqID(r.Context()); id != "" {
			md["X-Request-ID"] = id
		}
	}
	w.Header().Set("X-Request-ID", md["X-Request-ID"])

	resp, err := h.dispatcher.Dispatch(requestContext(r.Context(), md), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTP) writeError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", behavior.F("status", status), behavior.F("error", err.Error()))
	}
	writeJSON(w, status, NewErrorBody(err))
}

// decodeError keeps unknown names distinguishable from bad payloads.
func decodeError(err error) error {
	if errors.Is(err, mediator.ErrUnknownRequest) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrMalformedRequest, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
