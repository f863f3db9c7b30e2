package command

import (
	"github.com/Tractonomy/free-fleet-ros2/navgraph"
	"github.com/Tractonomy/free-fleet-ros2/plan"
)

// LanePosition is where a robot sits along a lane's direction of travel.
type LanePosition int

const (
	BeforeLane LanePosition = iota
	OnLane
	AfterLane
)

// ClassifyOnLane projects p onto the segment p0->p1. A projection strictly
// inside the segment is OnLane; a projection exactly at either end counts
// as AfterLane, as does a degenerate segment.
func ClassifyOnLane(p, p0, p1 navgraph.Vec2) LanePosition {
	dir := p1.Sub(p0)
	lenSq := dir.Dot(dir)
	if lenSq == 0 {
		return AfterLane
	}
	t := p.Sub(p0).Dot(dir) / lenSq
	switch {
	case t < 0:
		return BeforeLane
	case t > 0 && t < 1:
		return OnLane
	default:
		return AfterLane
	}
}

// NewlyClosedLanes reacts to lanes that were just closed. If the robot is
// approaching its target along a closed lane, or a later step of its plan
// uses one, the planner is interrupted once. A robot caught partway along
// a closed lane is re-placed so the planner routes it back: onto the reverse
// lane when one exists, else at the lane's entry waypoint.
func (h *Handle) NewlyClosedLanes(closed navgraph.LaneSet) {
	var after deferred
	h.mu.Lock()
	h.newlyClosedLanes(closed, &after)
	h.mu.Unlock()
	after.run()
}

func (h *Handle) newlyClosedLanes(closed navgraph.LaneSet, after *deferred) {
	target := h.travel.targetPlanIndex
	if target < 0 || target >= len(h.travel.plan) {
		return
	}

	replan := false
	for _, l := range h.travel.plan[target].ApproachLanes {
		if !closed.Has(l) {
			continue
		}
		replan = true
		if h.lastState == nil {
			continue
		}
		lane := h.graph.Lane(l)
		entry := h.graph.Waypoint(lane.Entry)
		exit := h.graph.Waypoint(lane.Exit)
		loc := h.lastState.Location
		if ClassifyOnLane(loc.Pose.Point(), entry.Position, exit.Position) != OnLane {
			continue
		}

		pose := plan.Pose{X: loc.Pose.X, Y: loc.Pose.Y, Yaw: loc.Pose.Yaw}
		if reverse, ok := h.graph.LaneFrom(exit.Index, entry.Index); ok {
			h.report(PositionUpdate{Kind: PositionOnLanes, Map: entry.Map, Pose: pose, Lanes: []int{reverse.Index}}, after)
		} else {
			h.report(PositionUpdate{Kind: PositionAtWaypoint, Map: entry.Map, Pose: pose, Waypoint: entry.Index}, after)
		}
	}

	if !replan {
		for _, wp := range h.travel.plan[target:] {
			for _, l := range wp.ApproachLanes {
				if closed.Has(l) {
					replan = true
					break
				}
			}
			if replan {
				break
			}
		}
	}

	if replan {
		h.logf("command: lane closure invalidates the plan of [%s]; requesting replan", h.robot)
		after.add(h.updater.Interrupted)
	}
}
