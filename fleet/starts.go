package fleet

import (
	"github.com/Tractonomy/free-fleet-ros2/command"
	"github.com/Tractonomy/free-fleet-ros2/navgraph"
	"github.com/Tractonomy/free-fleet-ros2/plan"
)

// Start is a candidate initial placement for a robot. Lane is -1 when the
// robot starts at Waypoint; otherwise the robot is on Lane heading to
// Waypoint, the lane's exit.
type Start struct {
	Map         string
	Waypoint    int
	Lane        int
	Orientation float64
}

func (s Start) OnLane() bool { return s.Lane >= 0 }

// ComputeStarts places a pose on the graph. A waypoint within WaypointSnap
// wins outright; otherwise every lane within LaneSnap whose projection falls
// on the segment yields a start. An empty result means the robot cannot be
// placed.
func ComputeStarts(g *navgraph.Graph, mapName string, pose plan.Pose, tol command.Tolerances) []Start {
	p := pose.Point()
	if d, ok := g.NearestWaypoint(mapName, p); ok && d.Distance <= tol.WaypointSnap {
		return []Start{{Map: mapName, Waypoint: d.Index, Lane: -1, Orientation: pose.Yaw}}
	}

	var starts []Start
	for _, lane := range g.Lanes() {
		dist, ok := g.DistanceToLane(lane.Index, mapName, p)
		if !ok || dist > tol.LaneSnap {
			continue
		}
		starts = append(starts, Start{Map: mapName, Waypoint: lane.Exit, Lane: lane.Index, Orientation: pose.Yaw})
	}
	return starts
}
