package messaging

import (
	"fmt"

	"github.com/Tractonomy/free-fleet-ros2/command"
	"github.com/Tractonomy/free-fleet-ros2/fleet"
	"github.com/Tractonomy/free-fleet-ros2/plan"
	"github.com/Tractonomy/free-fleet-ros2/protocol"
)

func locationFromWire(l protocol.Location) command.Location {
	return command.Location{
		Time: l.T,
		Map:  l.Level,
		Pose: plan.Pose{X: l.X, Y: l.Y, Yaw: l.Yaw},
	}
}

func locationToWire(l command.Location) protocol.Location {
	return protocol.Location{
		T:     l.Time.UTC(),
		X:     l.Pose.X,
		Y:     l.Pose.Y,
		Yaw:   l.Pose.Yaw,
		Level: l.Map,
	}
}

// StateFromWire converts a reported robot state. Unknown modes are an error.
func StateFromWire(rs protocol.RobotState) (command.State, error) {
	mode, err := command.ParseMode(rs.Mode)
	if err != nil {
		return command.State{}, fmt.Errorf("robot %s: %w", rs.Name, err)
	}
	s := command.State{
		Name:           rs.Name,
		Model:          rs.Model,
		CommandID:      rs.TaskID,
		Mode:           mode,
		BatteryPercent: rs.BatteryPercent,
		Location:       locationFromWire(rs.Location),
	}
	if len(rs.Path) > 0 {
		s.Path = make([]command.Location, len(rs.Path))
		for i, l := range rs.Path {
			s.Path[i] = locationFromWire(l)
		}
	}
	return s, nil
}

// FleetStateFromWire converts a fleet report, dropping robots whose state
// cannot be converted. The returned errors describe the dropped robots.
func FleetStateFromWire(fs protocol.FleetState) (fleet.FleetState, []error) {
	out := fleet.FleetState{Name: fs.Name, Robots: make([]command.State, 0, len(fs.Robots))}
	var errs []error
	for _, rs := range fs.Robots {
		s, err := StateFromWire(rs)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out.Robots = append(out.Robots, s)
	}
	return out, errs
}

func LaneRequestFromWire(req protocol.LaneRequest, actor string) fleet.LaneRequest {
	return fleet.LaneRequest{
		Fleet: req.FleetName,
		Open:  req.OpenLanes,
		Close: req.CloseLanes,
		Actor: actor,
	}
}

func PathRequestToWire(req command.PathRequest) protocol.PathRequest {
	out := protocol.PathRequest{
		FleetName: req.Fleet,
		RobotName: req.Robot,
		TaskID:    req.CommandID,
		Path:      make([]protocol.Location, len(req.Path)),
	}
	for i, l := range req.Path {
		out.Path[i] = locationToWire(l)
	}
	for _, n := range req.Nodes {
		out.Nodes = append(out.Nodes, protocol.NavigationPoint{WaypointIndex: n.WaypointIndex, Yaw: n.Yaw})
	}
	return out
}

func ModeRequestToWire(req command.ModeRequest) protocol.ModeRequest {
	out := protocol.ModeRequest{
		FleetName: req.Fleet,
		RobotName: req.Robot,
		TaskID:    req.CommandID,
		Mode:      req.Mode.String(),
	}
	for _, p := range req.Parameters {
		out.Parameters = append(out.Parameters, protocol.ModeParameter{Name: p.Name, Value: p.Value})
	}
	return out
}
