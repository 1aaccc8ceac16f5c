package http

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/book-intake/cmd/api/book"
	"golang.org/x/time/rate"
)

/* Turns a panic in any handler into a 500 response instead of a dropped connection. */
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				log.Println(fmt.Errorf("recovered panic: %v", err))
				responseErrors(w, http.StatusInternalServerError, errorEntry{
					Code:    book.ErrInternal.Code,
					Message: book.ErrInternal.Message,
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client IP.
type clientLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	rps     float64
	burst   int
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		clients: make(map[string]*client),
		rps:     rps,
		burst:   burst,
	}
}

func (l *clientLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, found := l.clients[ip]
	if !found {
		c = &client{limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

/* Drops the clients not seen since the given time. */
func (l *clientLimiter) forget(seenBefore time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for ip, c := range l.clients {
		if c.lastSeen.Before(seenBefore) {
			delete(l.clients, ip)
		}
	}
}

func (l *clientLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

/* Forgets clients idle for 3 minutes, every interval, until done is closed. */
func (l *clientLimiter) cleanup(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			l.forget(now.Add(-3 * time.Minute))
		}
	}
}

/* Answers 429 once the client IP runs out of tokens. */
func rateLimit(l *clientLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if !l.allow(ip, time.Now()) {
			responseErrors(w, http.StatusTooManyRequests, errorEntry{
				Code:    "rate_limited",
				Message: "rate limit exceeded",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	responseErrors(w, http.StatusNotFound, errorEntry{
		Code:    "not_found",
		Message: "the requested resource could not be found",
	})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	responseErrors(w, http.StatusMethodNotAllowed, errorEntry{
		Code:    "method_not_allowed",
		Message: fmt.Sprintf("the %s method is not supported for this resource", r.Method),
	})
}
