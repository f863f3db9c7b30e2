package www

import (
	"net/http"
)

func (h *Handlers) apiDiagnostics(w http.ResponseWriter, r *http.Request) {
	var auditLog any = []any{}
	if db := h.engine.DB(); db != nil {
		if entries, err := db.ListAuditLog(50); err == nil {
			auditLog = entries
		}
	}

	fl := h.engine.Fleet()
	h.jsonOK(w, map[string]any{
		"fleet":        fl.Name(),
		"robots":       len(fl.Robots()),
		"unplaced":     fl.Unplaced(),
		"closed_lanes": fl.ClosedLanes(),
		"messaging":    h.engine.MessagingConnected(),
		"subscribers":  h.engine.Events.Len(),
		"sse_clients":  h.eventHub.ClientCount(),
		"audit_log":    auditLog,
	})
}
