package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Server timeouts. Writes are bounded generously because a forced status check or an update
// waits for registry and runtime calls.
const (
	readHeaderTimeout = 10 * time.Second
	serverReadTimeout = 30 * time.Second
	serverWriteTimeout = 10 * time.Minute
	serverIdleTimeout  = 2 * time.Minute
	shutdownTimeout    = 5 * time.Second
)

// errNoHandlers indicates Start was called before any handler was registered.
var errNoHandlers = errors.New("no handlers registered")

// HTTPServer is the server run by RunHTTPServer.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// API is the HTTP API server of docker-monitor.
type API struct {
	Token      string // Bearer token required on every request, authentication is off when empty.
	Addr       string // Listen address.
	registered bool
	mux        *http.ServeMux
	server     HTTPServer
}

// New creates an API instance. The optional server replaces the real http.Server in tests.
func New(token, addr string, server ...HTTPServer) *API {
	var injectedServer HTTPServer
	if len(server) > 0 {
		injectedServer = server[0]
	}

	logrus.WithFields(logrus.Fields{
		"addr": addr,
		"auth": token != "",
	}).Debug("Initialized new API instance")

	return &API{
		Token:  token,
		Addr:   addr,
		mux:    http.NewServeMux(),
		server: injectedServer,
	}
}

// RegisterFunc registers a handler function for a ServeMux pattern such as "GET /v1/status".
func (a *API) RegisterFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	a.mux.HandleFunc(pattern, handler)
	a.registered = true
}

// RegisterHandler registers a handler for a ServeMux pattern.
func (a *API) RegisterHandler(pattern string, handler http.Handler) {
	a.mux.Handle(pattern, handler)
	a.registered = true
}

// Handler returns the routed handler wrapped with request logging and token authentication.
func (a *API) Handler() http.Handler {
	return logRequests(a.authMiddleware(a.mux))
}

// Start serves the API until ctx is cancelled.
// With blocking set it returns once the server stopped, otherwise it serves in the background.
func (a *API) Start(ctx context.Context, blocking bool) error {
	if !a.registered {
		return errNoHandlers
	}

	server := a.server
	if server == nil {
		server = &http.Server{
			Addr:              a.Addr,
			Handler:           a.Handler(),
			ReadTimeout:       serverReadTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      serverWriteTimeout,
			IdleTimeout:       serverIdleTimeout,
			BaseContext:       func(_ net.Listener) context.Context { return ctx },
		}
	}

	logrus.WithField("addr", a.Addr).Info("Starting HTTP API server")

	if blocking {
		return RunHTTPServer(ctx, server)
	}

	go func() {
		if err := RunHTTPServer(ctx, server); err != nil {
			logrus.WithError(err).Error("HTTP API server failed")
		}
	}()

	return nil
}

// authMiddleware rejects requests without the configured bearer token.
func (a *API) authMiddleware(next http.Handler) http.Handler {
	if a.Token == "" {
		return next
	}

	expected := []byte(a.Token)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			WriteProblem(w, http.StatusUnauthorized, CodeUnauthorized, "")

			return
		}

		next.ServeHTTP(w, r)
	})
}

// logRequests logs every request at debug level.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logrus.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Debug("Received HTTP API request")

		next.ServeHTTP(w, r)
	})
}

// RunHTTPServer runs the server and shuts it down gracefully once ctx is cancelled.
func RunHTTPServer(ctx context.Context, server HTTPServer) error {
	errChan := make(chan error, 1)

	go func() {
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logrus.Debug("HTTP API server stopped")

		return nil
	}
}
