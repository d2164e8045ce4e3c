package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with the project defaults. Per-request
// deadlines are handled by the router's timeout middleware, so only
// connection-level timeouts live here.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
