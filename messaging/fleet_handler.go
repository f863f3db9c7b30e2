package messaging

import (
	"log"

	"github.com/Tractonomy/free-fleet-ros2/fleet"
	"github.com/Tractonomy/free-fleet-ros2/navgraph"
	"github.com/Tractonomy/free-fleet-ros2/protocol"
)

// StateSink receives converted fleet reports. *fleet.Fleet implements it.
type StateSink interface {
	HandleFleetState(fs fleet.FleetState)
}

// LaneSink applies lane requests.
type LaneSink interface {
	HandleLaneRequest(req fleet.LaneRequest) navgraph.LaneSet
}

// FleetHandler handles inbound protocol messages addressed to the adapter:
// fleet state reports and lane requests.
type FleetHandler struct {
	protocol.NoOpHandler

	states StateSink
	lanes  LaneSink
}

func NewFleetHandler(states StateSink, lanes LaneSink) *FleetHandler {
	return &FleetHandler{states: states, lanes: lanes}
}

func (h *FleetHandler) HandleFleetState(_ *protocol.Envelope, p *protocol.FleetState) {
	fs, errs := FleetStateFromWire(*p)
	for _, err := range errs {
		log.Printf("fleet_handler: fleet [%s]: skipping state: %v", p.Name, err)
	}
	h.states.HandleFleetState(fs)
}

func (h *FleetHandler) HandleLaneRequest(env *protocol.Envelope, p *protocol.LaneRequest) {
	actor := env.Src.Node
	if actor == "" {
		actor = env.Src.Role
	}
	newly := h.lanes.HandleLaneRequest(LaneRequestFromWire(*p, actor))
	if len(newly) > 0 {
		log.Printf("fleet_handler: lane request from %s closed lanes %v", actor, newly.Sorted())
	}
}

// AdapterFilter accepts messages addressed to the adapter role, either
// broadcast or to nodeID.
func AdapterFilter(nodeID string) protocol.FilterFunc {
	return func(hdr *protocol.RawHeader) bool {
		if hdr.Dst.Role != "" && hdr.Dst.Role != protocol.RoleAdapter {
			return false
		}
		return hdr.Dst.Node == "" || hdr.Dst.Node == nodeID
	}
}
