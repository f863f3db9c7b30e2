// Package plan describes the timed routes a robot is asked to follow and the
// trajectories published to the traffic schedule.
package plan

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Tractonomy/free-fleet-ros2/navgraph"
)

var ErrNoLane = errors.New("no lane between waypoints")

type Pose struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Yaw float64 `json:"yaw"`
}

func (p Pose) Point() navgraph.Vec2 { return navgraph.Vec2{X: p.X, Y: p.Y} }

// Waypoint is one step of a TravelPlan. GraphIndex is nil for free-space
// points that do not sit on a graph waypoint. ApproachLanes are the lanes
// the robot drives along to reach this point.
type Waypoint struct {
	Time          time.Time
	Pose          Pose
	GraphIndex    *int
	ApproachLanes []int
}

// Plan is an ordered route. It may be empty.
type Plan []Waypoint

// Last returns the final waypoint, or false for an empty plan.
func (p Plan) Last() (Waypoint, bool) {
	if len(p) == 0 {
		return Waypoint{}, false
	}
	return p[len(p)-1], true
}

// GraphIndices returns the graph index of every waypoint that has one, in order.
func (p Plan) GraphIndices() []int {
	var out []int
	for _, wp := range p {
		if wp.GraphIndex != nil {
			out = append(out, *wp.GraphIndex)
		}
	}
	return out
}

type VehicleTraits struct {
	LinearVelocity  float64 `yaml:"linear_velocity" json:"linear_velocity"`
	AngularVelocity float64 `yaml:"angular_velocity" json:"angular_velocity"`
}

// SegmentDuration is the time to turn and drive from a to b at nominal speed.
func (v VehicleTraits) SegmentDuration(a, b Pose) time.Duration {
	var secs float64
	if v.LinearVelocity > 0 {
		secs += a.Point().DistanceTo(b.Point()) / v.LinearVelocity
	}
	if v.AngularVelocity > 0 {
		secs += math.Abs(AngleDiff(b.Yaw, a.Yaw)) / v.AngularVelocity
	}
	return time.Duration(secs * float64(time.Second))
}

// AngleDiff returns a-b wrapped to [-pi, pi].
func AngleDiff(a, b float64) float64 {
	d := math.Mod(a-b, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	} else if d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// FromWaypoints turns an explicit sequence of graph waypoints into a timed
// plan starting at start. Consecutive waypoints must be joined by a lane;
// the robot faces along each lane it drives. No search is performed.
func FromWaypoints(g *navgraph.Graph, traits VehicleTraits, start time.Time, indices []int) (Plan, error) {
	out := make(Plan, 0, len(indices))
	t := start
	var prev Pose
	for i, idx := range indices {
		if !g.HasWaypoint(idx) {
			return nil, fmt.Errorf("waypoint %d: out of range", idx)
		}
		pos := g.Waypoint(idx).Position
		wp := Waypoint{GraphIndex: intPtr(idx)}
		if i == 0 {
			wp.Pose = Pose{X: pos.X, Y: pos.Y}
			if len(indices) > 1 && g.HasWaypoint(indices[1]) {
				wp.Pose.Yaw = heading(pos, g.Waypoint(indices[1]).Position)
			}
		} else {
			lane, ok := g.LaneFrom(indices[i-1], idx)
			if !ok {
				return nil, fmt.Errorf("%d -> %d: %w", indices[i-1], idx, ErrNoLane)
			}
			wp.Pose = Pose{X: pos.X, Y: pos.Y, Yaw: heading(g.Waypoint(indices[i-1]).Position, pos)}
			wp.ApproachLanes = []int{lane.Index}
			t = t.Add(traits.SegmentDuration(prev, wp.Pose))
		}
		wp.Time = t
		prev = wp.Pose
		out = append(out, wp)
	}
	return out, nil
}

func heading(from, to navgraph.Vec2) float64 {
	d := to.Sub(from)
	if d.Norm() < 1e-9 {
		return 0
	}
	return math.Atan2(d.Y, d.X)
}

func intPtr(i int) *int { return &i }
