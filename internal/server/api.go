package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
)

const maxBodyBytes = 1 << 20

// RunLister reads sync run history. Implemented by repositories.SyncRunRepository.
type RunLister interface {
	ListByGroup(ctx context.Context, groupID string, limit int) ([]models.SyncRun, error)
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Scheduler  tasks.SchedulerState       `json:"scheduler"`
	Groups     int                        `json:"groups"`
	LastSweep  *tasks.SweepResult         `json:"last_sweep"`
	Connectors []services.ConnectorStatus `json:"connectors"`
}

// GroupRequest is the body of POST /api/groups and POST /api/groups/{id}/playlists.
//
// Unknown service keys in Playlists are ignored.
type GroupRequest struct {
	Name           string            `json:"name"`
	PrimaryService string            `json:"primary_service"`
	Playlists      map[string]string `json:"playlists"`
}

// APIHandler serves the JSON API over a [tasks.SyncManager].
type APIHandler struct {
	manager *tasks.SyncManager
	runs    RunLister
	logger  *log.Logger
}

func NewAPIHandler(manager *tasks.SyncManager, runs RunLister, logger *log.Logger) *APIHandler {
	return &APIHandler{manager: manager, runs: runs, logger: logger}
}

// Register adds every API route to router.
func (h *APIHandler) Register(router *BasicRouter) {
	router.HandleFunc(http.MethodGet, "/api/status", h.status)
	router.HandleFunc(http.MethodGet, "/api/playlists", h.playlists)
	router.HandleFunc(http.MethodGet, "/api/groups", h.listGroups)
	router.HandleFunc(http.MethodPost, "/api/groups", h.createGroup)
	router.HandleFunc(http.MethodDelete, "/api/groups/{id}", h.deleteGroup)
	router.HandleFunc(http.MethodPost, "/api/groups/{id}/playlists", h.updateGroup)
	router.HandleFunc(http.MethodGet, "/api/groups/{id}/runs", h.groupRuns)
	router.HandleFunc(http.MethodPost, "/api/sync", h.sync)
}

func (h *APIHandler) status(w http.ResponseWriter, r *http.Request) {
	groups, err := h.manager.Registry().Load(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Scheduler:  h.manager.State(),
		Groups:     len(groups),
		LastSweep:  h.manager.LastSweep(),
		Connectors: h.manager.Connectors().Statuses(r.Context()),
	})
}

// playlists lists playlists per service. Services that are not ready or fail report an empty list.
func (h *APIHandler) playlists(w http.ResponseWriter, r *http.Request) {
	wanted := models.ServiceTypes
	if raw := r.URL.Query().Get("service"); raw != "" {
		service, err := models.ParseServiceType(raw)
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown service")
			return
		}
		wanted = []models.ServiceType{service}
	}

	result := make(map[models.ServiceType][]models.Playlist, len(wanted))
	for _, service := range wanted {
		result[service] = []models.Playlist{}
		conn, err := h.manager.Connectors().Get(service)
		if err != nil || !conn.TokenReady(r.Context()) {
			continue
		}
		playlists, err := conn.ListPlaylists(r.Context())
		if err != nil {
			h.logger.Warn("Failed to list playlists", "service", service, "error", err)
			continue
		}
		result[service] = playlists
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.manager.Registry().Load(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *APIHandler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	primary, err := models.ParseServiceType(req.PrimaryService)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid primary_service")
		return
	}

	group, err := h.manager.Registry().Create(r.Context(), req.Name, primary, knownPlaylists(req.Playlists))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info("Group created", "group", group.Name, "id", group.ID)
	writeJSON(w, http.StatusCreated, group)
}

func (h *APIHandler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.manager.Registry().Delete(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info("Group deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) updateGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	group, err := h.manager.Registry().Update(r.Context(), r.PathValue("id"), knownPlaylists(req.Playlists))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h *APIHandler) groupRuns(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.manager.Registry().Get(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs := []models.SyncRun{}
	if h.runs != nil {
		var err error
		if runs, err = h.runs.ListByGroup(r.Context(), id, limit); err != nil {
			h.fail(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *APIHandler) sync(w http.ResponseWriter, r *http.Request) {
	result := h.manager.RunOnce(r.Context())
	if result.Err != nil {
		writeJSON(w, http.StatusInternalServerError, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// fail maps sentinel errors onto status codes.
func (h *APIHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrGroupNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidService):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// knownPlaylists keeps entries whose key is a known service.
func knownPlaylists(raw map[string]string) map[models.ServiceType]string {
	playlists := make(map[models.ServiceType]string, len(raw))
	for key, id := range raw {
		service, err := models.ParseServiceType(key)
		if err != nil {
			continue
		}
		playlists[service] = id
	}
	return playlists
}

func decodeJSON(r *http.Request, dest any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid JSON payload: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
