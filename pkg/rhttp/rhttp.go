// Copyright 2021-2026 The Work Package Service Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rhttp provides the HTTP server hosting the service handler.
package rhttp

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/genomics-archive/wps/pkg/appctx"
)

// Config configures a Server.
type Config func(*Server)

// WithHandler sets the service handler.
func WithHandler(h http.Handler) Config {
	return func(s *Server) {
		s.handler = h
	}
}

// WithLogger sets the server logger.
func WithLogger(log zerolog.Logger) Config {
	return func(s *Server) {
		s.log = log
	}
}

// WithCORSOrigins enables CORS for the given origins.
func WithCORSOrigins(origins []string) Config {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// Server contains the server info.
type Server struct {
	httpServer  *http.Server
	listener    net.Listener
	handler     http.Handler
	corsOrigins []string
	log         zerolog.Logger
}

// New returns a new server.
func New(c ...Config) *Server {
	s := &Server{
		httpServer: &http.Server{},
		log:        zerolog.Nop(),
	}
	for _, cc := range c {
		cc(s)
	}
	return s
}

// Start starts serving on the given listener and blocks until the server is
// shut down.
func (s *Server) Start(ln net.Listener) error {
	handler := s.withMiddlewares(s.handler)
	s.httpServer.Handler = handler
	s.listener = ln

	s.log.Info().Msgf("http server listening at http://%s", s.listener.Addr())
	err := s.httpServer.Serve(s.listener)
	if err == nil || err == http.ErrServerClosed {
		return nil
	}
	return errors.Wrap(err, "rhttp: error serving")
}

// GracefulStop gracefully stops the server, waiting at most the given timeout
// for in-flight requests.
func (s *Server) GracefulStop(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) withMiddlewares(h http.Handler) http.Handler {
	wrapped := s.logMiddleware(h)
	if len(s.corsOrigins) > 0 {
		wrapped = cors.New(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}).Handler(wrapped)
	}
	return wrapped
}

// logMiddleware installs a request-scoped logger carrying a correlation id.
func (s *Server) logMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		log := s.log.With().Str("request-id", requestID).Logger()

		ctx := r.Context()
		ctx = appctx.WithLogger(ctx, &log)
		ctx = appctx.WithRequestID(ctx, requestID)

		start := time.Now()
		h.ServeHTTP(w, r.WithContext(ctx))
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}
