// Package httpserver provides an http.Server with sane production timeouts.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server for addr with read/write/idle timeouts set. Handlers
// carry their own per-request deadlines via middleware.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
