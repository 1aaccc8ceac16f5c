package http

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/net/netutil"
)

type ServerConfig struct {
	Port           int
	RateLimitRPS   float64 // Per client IP. Zero disables rate limiting.
	RateLimitBurst int
}

func NewServer(config ServerConfig, h *BookHandler) *http.Server {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(notFound)
	router.MethodNotAllowed = http.HandlerFunc(methodNotAllowed)

	router.HandlerFunc(http.MethodGet, "/ping", ping)
	router.HandlerFunc(http.MethodPost, "/books", h.createBook)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       time.Minute,
	}

	var handler http.Handler = router
	if config.RateLimitRPS > 0 {
		limiter := newClientLimiter(config.RateLimitRPS, config.RateLimitBurst)
		done := make(chan struct{})
		var stop sync.Once
		go limiter.cleanup(done, time.Minute)
		// The cleanup loop lives as long as the server.
		server.RegisterOnShutdown(func() {
			stop.Do(func() { close(done) })
		})
		handler = rateLimit(limiter, handler)
	}
	server.Handler = recoverPanic(handler)

	return server
}

/* Opens the server listener, capped to maxConnections simultaneous connections when it is above zero. */
func Listen(server *http.Server, maxConnections int) (net.Listener, error) {
	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", server.Addr, err)
	}
	if maxConnections > 0 {
		listener = netutil.LimitListener(listener, maxConnections)
	}
	return listener, nil
}

/* Tests the http server connection.  */
func ping(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
