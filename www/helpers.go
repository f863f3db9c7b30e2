package www

import (
	"encoding/json"
	"net/http"

	"github.com/Tractonomy/free-fleet-ros2/navgraph"
)

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// actor names the caller in audit records.
func (h *Handlers) actor(r *http.Request) string {
	if u := h.getUsername(r); u != "" {
		return u
	}
	return "web"
}

type graphView struct {
	Fingerprint string              `json:"fingerprint"`
	Waypoints   []navgraph.Waypoint `json:"waypoints"`
	Lanes       []laneView          `json:"lanes"`
}

type laneView struct {
	Index       int    `json:"index"`
	Entry       int    `json:"entry"`
	Exit        int    `json:"exit"`
	EntryAction string `json:"entry_action,omitempty"`
	ExitAction  string `json:"exit_action,omitempty"`
	Closed      bool   `json:"closed"`
}

func newGraphView(g *navgraph.Graph, closed []int) graphView {
	closedSet := navgraph.NewLaneSet(closed...)
	v := graphView{
		Fingerprint: g.Fingerprint(),
		Waypoints:   g.Waypoints(),
		Lanes:       make([]laneView, 0, g.LaneCount()),
	}
	for _, l := range g.Lanes() {
		v.Lanes = append(v.Lanes, laneView{
			Index:       l.Index,
			Entry:       l.Entry,
			Exit:        l.Exit,
			EntryAction: actionLabel(l.EntryAction),
			ExitAction:  actionLabel(l.ExitAction),
			Closed:      closedSet.Has(l.Index),
		})
	}
	return v
}

func actionLabel(a navgraph.LaneAction) string {
	if a.Kind == navgraph.ActionNone {
		return ""
	}
	return a.String()
}
