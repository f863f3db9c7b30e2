package www

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	fl := h.engine.Fleet()
	h.jsonOK(w, map[string]any{
		"status":      "ok",
		"fleet":       fl.Name(),
		"robots":      len(fl.Robots()),
		"unplaced":    len(fl.UnplacedNames()),
		"messaging":   h.engine.MessagingConnected(),
		"graph":       h.engine.Graph().Fingerprint(),
		"sse_clients": h.eventHub.ClientCount(),
	})
}

func (h *Handlers) apiListRobots(w http.ResponseWriter, r *http.Request) {
	rs := h.engine.RobotState()
	if rs == nil {
		h.jsonOK(w, []any{})
		return
	}
	h.jsonOK(w, rs.List())
}

func (h *Handlers) apiGetRobot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	rs := h.engine.RobotState()
	if rs == nil {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	snap, ok := rs.Get(name)
	if !ok {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	resp := map[string]any{"state": snap}
	if hd, err := h.engine.Fleet().Robot(name); err == nil {
		cs := hd.Snapshot()
		resp["command"] = map[string]any{
			"command_id":          cs.CommandID,
			"following":           cs.Following,
			"docking":             cs.Docking,
			"interrupted":         cs.Interrupted,
			"target_plan_index":   cs.TargetPlanIndex,
			"last_known_waypoint": cs.LastKnownWaypoint,
		}
	}
	h.jsonOK(w, resp)
}

func (h *Handlers) apiGraph(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, newGraphView(h.engine.Graph(), h.engine.Fleet().ClosedLanes()))
}

func (h *Handlers) apiClosedLanes(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, map[string]any{
		"fleet":        h.engine.Fleet().Name(),
		"closed_lanes": h.engine.Fleet().ClosedLanes(),
	})
}

func (h *Handlers) apiLaneHistory(w http.ResponseWriter, r *http.Request) {
	db := h.engine.DB()
	if db == nil {
		h.jsonOK(w, []any{})
		return
	}
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	history, err := db.ListLaneHistory(h.engine.Fleet().Name(), limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, history)
}
