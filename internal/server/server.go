// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package server is the thin HTTP surface over the store. It resolves
// the caller identity via the auth middleware, translates JSON payloads
// to store calls and store errors to status codes, and adds nothing to
// the authorization model: every decision happens in the store and the
// policy engine.
package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/memvault/memvault/internal/auth"
	"github.com/memvault/memvault/internal/store"
	"github.com/sirupsen/logrus"
)

// HTTPServer handles HTTP routes
type HTTPServer struct {
	store          *store.Store
	authMiddleware *auth.Middleware
	log            *logrus.Logger
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(st *store.Store, verifier auth.Verifier, log *logrus.Logger) *HTTPServer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &HTTPServer{
		store:          st,
		authMiddleware: auth.NewMiddleware(verifier),
		log:            log,
	}
}

// RegisterRoutes registers all HTTP routes
func (h *HTTPServer) RegisterRoutes(mux *http.ServeMux) {
	// Health check (unauthenticated)
	mux.HandleFunc("GET /api/health", h.HandleHealth)

	// Memory routes
	mux.Handle("GET /api/memories", h.protected(h.HandleListMemories))
	mux.Handle("POST /api/memories", h.protected(h.HandleCreateMemory))
	mux.Handle("GET /api/memories/{id}", h.protected(h.HandleGetMemory))
	mux.Handle("PATCH /api/memories/{id}", h.protected(h.HandleUpdateMemory))
	mux.Handle("DELETE /api/memories/{id}", h.protected(h.HandleDeleteMemory))

	// Record routes
	mux.Handle("GET /api/memories/{id}/records", h.protected(h.HandleListRecords))
	mux.Handle("POST /api/memories/{id}/records", h.protected(h.HandleCreateRecord))
	mux.Handle("PATCH /api/memories/{id}/records/{recordID}", h.protected(h.HandleUpdateRecord))
	mux.Handle("DELETE /api/memories/{id}/records/{recordID}", h.protected(h.HandleDeleteRecord))

	// Chat routes
	mux.Handle("GET /api/chat/memories/{id}/messages", h.protected(h.HandleListMessages))
	mux.Handle("POST /api/chat/send", h.protected(h.HandleSendMessage))
}

// protected wraps a handler with request logging and authentication
func (h *HTTPServer) protected(handler http.HandlerFunc) http.Handler {
	return h.logRequests(h.authMiddleware.RequireAuth(handler))
}

// logRequests logs each request with a generated request ID
func (h *HTTPServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		start := time.Now()

		next.ServeHTTP(w, r)

		h.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"duration":   time.Since(start).String(),
		}).Info("request handled")
	})
}

// HandleHealth reports server liveness
func (h *HTTPServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
