package www

import (
	"encoding/json"
	"net/http"
)

func (h *Handlers) apiSetLanes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Open  []int `json:"open"`
		Close []int `json:"close"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if len(req.Open) == 0 && len(req.Close) == 0 {
		h.jsonError(w, "no lanes given", http.StatusBadRequest)
		return
	}
	newly := h.engine.SetLanes(req.Open, req.Close, h.actor(r))
	h.jsonOK(w, map[string]any{
		"status":       "ok",
		"newly_closed": newly.Sorted(),
		"closed_lanes": h.engine.Fleet().ClosedLanes(),
	})
}
