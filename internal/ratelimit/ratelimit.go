// Package ratelimit throttles requests per client IP.
package ratelimit

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

type Config struct {
	Requests int
	Window   time.Duration
	// Counter defaults to httprate's in-process counter.
	Counter httprate.LimitCounter
	// OnLimited writes the 429 response.
	OnLimited http.HandlerFunc
	// OnError handles counter failures.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// ByIP builds the middleware. Requests must already carry the real client
// address in RemoteAddr (see chi's RealIP middleware).
func ByIP(cfg Config) func(http.Handler) http.Handler {
	opts := []httprate.Option{httprate.WithKeyFuncs(httprate.KeyByIP)}
	if cfg.Counter != nil {
		opts = append(opts, httprate.WithLimitCounter(cfg.Counter))
	}
	if cfg.OnLimited != nil {
		opts = append(opts, httprate.WithLimitHandler(cfg.OnLimited))
	}
	if cfg.OnError != nil {
		opts = append(opts, httprate.WithErrorHandler(cfg.OnError))
	}
	return httprate.Limit(cfg.Requests, cfg.Window, opts...)
}
