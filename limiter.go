/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"
)

func newCommandLimiter(cfg *Config) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(cfg.commandRate), cfg.commandBurst)
}

func newGenerateLimiter(cfg *Config) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.generateRate)), cfg.generateRate)
}

// limit rejects requests with 429 once the limiter is exhausted.
func limit(cfg *Config, l *rate.Limiter, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if !l.Allow() {
			logf(cfg, "LIMIT: Rejected %s %s from %s", r.Method, r.URL.Path, realIP(r))
			writeJSON(w, http.StatusTooManyRequests, errorAck{Error: ErrRateLimited.Error()})
			return
		}
		next(w, r, p)
	}
}
