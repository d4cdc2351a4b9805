package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/detect"
)

// References handles GET /api/references.
//
//	@Summary		Get the full key-to-references snapshot
//	@Tags			references
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/references [get]
func (h *Handler) References(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"references": h.svc.References(r.Context()),
	})
}

// Counts handles GET /api/references/counts.
//
//	@Summary		Get per-key reference counts
//	@Tags			references
//	@Produce		json
//	@Param			min	query		int	false	"Minimum count to include"
//	@Success		200	{object}	CountsResponse
//	@Security		BearerAuth
//	@Router			/references/counts [get]
func (h *Handler) Counts(w http.ResponseWriter, r *http.Request) {
	min, _ := strconv.Atoi(r.URL.Query().Get("min"))
	writeJSON(w, http.StatusOK, CountsResponse{Counts: h.svc.Counts(r.Context(), min)})
}

// FileReferences handles GET /api/references/file/*.
//
//	@Summary		Get the per-file reference view
//	@Tags			references
//	@Produce		json
//	@Param			path	path		string	true	"File path"
//	@Success		200		{object}	refs.FileCache
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/references/file/{path} [get]
func (h *Handler) FileReferences(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	fc, err := h.svc.FileReferences(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("file references failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

// Detections handles GET /api/detections/*.
//
//	@Summary		Detect implicit links in a file
//	@Tags			detection
//	@Produce		json
//	@Param			path	path		string	true	"File path"
//	@Success		200		{object}	DetectionsResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/detections/{path} [get]
func (h *Handler) Detections(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	dets, err := h.svc.Detections(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("detections failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if dets == nil {
		dets = []detect.Detection{}
	}
	writeJSON(w, http.StatusOK, DetectionsResponse{Path: path, Detections: dets})
}

// Policies handles GET /api/policies.
//
//	@Summary		List key-equivalence policies
//	@Tags			policies
//	@Produce		json
//	@Success		200	{object}	PoliciesResponse
//	@Security		BearerAuth
//	@Router			/policies [get]
func (h *Handler) Policies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PoliciesResponse{Policies: h.svc.Policies(r.Context())})
}

// SetPolicy handles PUT /api/policy.
//
//	@Summary		Switch the active policy and rebuild the index
//	@Tags			policies
//	@Accept			json
//	@Param			body	body	SetPolicyRequest	true	"Policy ID"
//	@Success		204		"Policy switched"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/policy [put]
func (h *Handler) SetPolicy(w http.ResponseWriter, r *http.Request) {
	var req SetPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.svc.SetPolicy(r.Context(), req.ID); err != nil {
		if errors.Is(err, apperr.ErrUnknownPolicy) {
			writeJSON(w, http.StatusBadRequest, errorBody("unknown policy"))
		} else {
			slog.Error("set policy failed", slog.String("id", req.ID), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DetectionMode handles GET /api/detection.
//
//	@Summary		Get the active detection mode
//	@Tags			detection
//	@Produce		json
//	@Success		200	{object}	DetectionModeResponse
//	@Security		BearerAuth
//	@Router			/detection [get]
func (h *Handler) DetectionMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DetectionModeResponse{Mode: string(h.svc.DetectionMode(r.Context()))})
}

// SetDetection handles PUT /api/detection.
//
//	@Summary		Replace the detection configuration
//	@Tags			detection
//	@Accept			json
//	@Param			body	body	DetectionSettingsRequest	true	"Detection settings"
//	@Success		204		"Settings applied"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/detection [put]
func (h *Handler) SetDetection(w http.ResponseWriter, r *http.Request) {
	var req DetectionSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	settings := detect.Settings{
		Mode:       detect.Mode(req.Mode),
		Dictionary: req.Dictionary,
		RegexRules: req.RegexRules,
	}
	if err := h.svc.SetDetection(r.Context(), settings); err != nil {
		if errors.Is(err, apperr.ErrInvalidRule) {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid detection rule"))
		} else {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rebuild handles POST /api/rebuild.
//
//	@Summary		Re-sync the cache from disk and rebuild index and detector
//	@Tags			references
//	@Success		204	"Rebuild complete"
//	@Security		BearerAuth
//	@Router			/rebuild [post]
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Rebuild(r.Context()); err != nil {
		slog.Error("rebuild failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	h.publish("rebuilt", "")
	w.WriteHeader(http.StatusNoContent)
}
