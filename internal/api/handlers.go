// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/watchdex/internal/database"
	"github.com/tomtom215/watchdex/internal/logging"
	"github.com/tomtom215/watchdex/internal/models"
	"github.com/tomtom215/watchdex/internal/tracker"
	"github.com/tomtom215/watchdex/internal/validation"
)

// Handler holds the dependencies of every HTTP handler.
type Handler struct {
	service *tracker.Service
	db      *database.DB
}

func NewHandler(service *tracker.Service, db *database.DB) *Handler {
	return &Handler{service: service, db: db}
}

// FavoriteRequest is the body of POST .../favorites.
type FavoriteRequest struct {
	ShowID             int64 `json:"show_id" validate:"required,gt=0"`
	IncludeDescendants bool  `json:"include_descendants"`
}

// SetStatusRequest is the body of PUT .../status.
type SetStatusRequest struct {
	Level     string `json:"level" validate:"required,watchlevel"`
	NodeID    int64  `json:"node_id" validate:"required,gt=0"`
	Status    string `json:"status" validate:"required,watchstatus"`
	Recursive bool   `json:"recursive"`
}

// pathID parses one positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation. On failure it writes the error response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message)
		return false
	}
	return true
}

// Health reports service liveness and database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeInternalError, "database unreachable")
		return
	}
	respondSuccess(w, map[string]string{"status": "healthy"}, 0, false)
}

// TrackedShows returns the profile's watchlist, served via the
// derived-data cache.
func (h *Handler) TrackedShows(w http.ResponseWriter, r *http.Request) {
	profileID, err := pathID(r, "profileID")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	start := time.Now()
	shows, cached, err := h.service.TrackedShows(r.Context(), profileID)
	if err != nil {
		logging.Error().Err(err).Int64("profile_id", profileID).Msg("watchlist query failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to load watchlist")
		return
	}
	if shows == nil {
		shows = []models.TrackedShow{}
	}

	queryTime := time.Since(start)
	if cached {
		queryTime = 0
	}
	respondSuccess(w, shows, queryTime, cached)
}

// AddFavorite starts tracking a show for the profile.
func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	profileID, err := pathID(r, "profileID")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	var req FavoriteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if _, found, err := h.db.GetShow(r.Context(), req.ShowID); err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "catalog lookup failed")
		return
	} else if !found {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "show not found")
		return
	}

	start := time.Now()
	result, err := h.service.AddToFavorites(r.Context(), profileID, req.ShowID, req.IncludeDescendants)
	if err != nil {
		logging.Error().Err(err).Int64("profile_id", profileID).Int64("show_id", req.ShowID).
			Msg("favorite failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "favorite failed")
		return
	}
	respondSuccess(w, result, time.Since(start), false)
}

// RemoveFavorite stops tracking a show for the profile.
func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	profileID, err := pathID(r, "profileID")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	showID, err := pathID(r, "showID")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	start := time.Now()
	result, err := h.service.RemoveFromFavorites(r.Context(), profileID, showID)
	if err != nil {
		logging.Error().Err(err).Int64("profile_id", profileID).Int64("show_id", showID).
			Msg("unfavorite failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "unfavorite failed")
		return
	}
	respondSuccess(w, result, time.Since(start), false)
}

// SetStatus force-sets one node's watch status.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	profileID, err := pathID(r, "profileID")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	var req SetStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	// Parse errors are unreachable after validation, but the typed
	// values come from the parse, not the raw strings.
	level, err := models.ParseLevel(req.Level)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	start := time.Now()
	result, err := h.service.SetStatus(r.Context(), profileID, models.NodeRef{Level: level, ID: req.NodeID}, status, req.Recursive)
	if err != nil {
		if errors.Is(err, tracker.ErrInvalidStatus) {
			respondError(w, http.StatusBadRequest, ErrCodeValidationError, err.Error())
			return
		}
		logging.Error().Err(err).Int64("profile_id", profileID).Str("node", req.Level).
			Msg("set status failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "set status failed")
		return
	}
	respondSuccess(w, result, time.Since(start), false)
}

// ReactToNewEpisodes applies the new-content reaction to one season.
func (h *Handler) ReactToNewEpisodes(w http.ResponseWriter, r *http.Request) {
	profileID, err := pathID(r, "profileID")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	seasonID, err := pathID(r, "seasonID")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	start := time.Now()
	result, err := h.service.ReactToNewEpisodes(r.Context(), profileID, seasonID)
	if err != nil {
		logging.Error().Err(err).Int64("profile_id", profileID).Int64("season_id", seasonID).
			Msg("new-episode reaction failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "new-episode reaction failed")
		return
	}
	respondSuccess(w, result, time.Since(start), false)
}
