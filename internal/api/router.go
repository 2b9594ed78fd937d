// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/watchdex/internal/config"
)

// NewRouter assembles the HTTP surface.
//
// All data routes share one rate limit bucket per client IP; health and
// metrics are left outside the limiter so monitoring cannot be starved
// by API traffic.
func NewRouter(cfg *config.ServerConfig, handler *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/api/v1/health", handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/profiles/{profileID}", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		r.Use(Metrics)

		r.Get("/shows", handler.TrackedShows)
		r.Post("/favorites", handler.AddFavorite)
		r.Delete("/favorites/{showID}", handler.RemoveFavorite)
		r.Put("/status", handler.SetStatus)
		r.Post("/seasons/{seasonID}/new-episodes", handler.ReactToNewEpisodes)
	})

	return r
}
