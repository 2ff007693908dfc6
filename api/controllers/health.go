package controllers

import (
	"context"
	"net/http"

	"github.com/livrinho/backend/api/responses"
	"github.com/livrinho/backend/pkg/config"
)

// Pinger reports whether a backing dependency answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Livrinho-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, pingers ...Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Livrinho-Env", cfg.App.Env)
		for _, p := range pingers {
			if p == nil {
				continue
			}
			if err := p.Ping(r.Context()); err != nil {
				responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
