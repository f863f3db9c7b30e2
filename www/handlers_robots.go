package www

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Tractonomy/free-fleet-ros2/command"
	"github.com/Tractonomy/free-fleet-ros2/engine"
	"github.com/Tractonomy/free-fleet-ros2/fleet"
	"github.com/Tractonomy/free-fleet-ros2/plan"
)

func (h *Handlers) apiRobotPath(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Waypoints []string `json:"waypoints"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	waypoints, err := h.engine.ResolveWaypoints(req.Waypoints)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := h.engine.FollowPath(chi.URLParam(r, "name"), waypoints, h.actor(r))
	if err != nil {
		h.jsonError(w, err.Error(), commandStatus(err))
		return
	}
	h.jsonOK(w, map[string]any{"status": "ok", "command_id": id})
}

func (h *Handlers) apiRobotDock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dock string `json:"dock"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Dock == "" {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	id, err := h.engine.Dock(chi.URLParam(r, "name"), req.Dock, h.actor(r))
	if err != nil {
		h.jsonError(w, err.Error(), commandStatus(err))
		return
	}
	h.jsonOK(w, map[string]any{"status": "ok", "command_id": id})
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, fleet.ErrUnknownRobot):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrLaneClosed):
		return http.StatusConflict
	case errors.Is(err, engine.ErrEmptyPath),
		errors.Is(err, plan.ErrNoLane),
		errors.Is(err, command.ErrUnknownWaypoint),
		errors.Is(err, command.ErrUnknownDock),
		errors.Is(err, command.ErrAmbiguousDock):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
