package command

// estimateState places a robot that is not known to be following a plan:
// at the nearest waypoint if it is close enough, else on the nearest lane,
// else only on its map.
func (h *Handle) estimateState(loc Location, after *deferred) {
	p := loc.Pose.Point()
	u := PositionUpdate{Kind: PositionOffGraph, Map: loc.Map, Pose: loc.Pose}

	if wp, ok := h.graph.NearestWaypoint(loc.Map, p); ok && wp.Distance <= h.tol.WaypointSnap {
		u.Kind = PositionAtWaypoint
		u.Waypoint = wp.Index
		h.travel.lastKnownWaypoint = wp.Index
	} else if lane, ok := h.graph.NearestLane(loc.Map, p); ok && lane.Distance <= h.tol.LaneSnap {
		u.Kind = PositionOnLanes
		u.Lanes = []int{lane.Index}
	}
	h.report(u, after)
}

// positionAt reports the robot at waypoint idx regardless of distance.
func (h *Handle) positionAt(loc Location, idx int) func() {
	u := PositionUpdate{
		Kind:     PositionAtWaypoint,
		Map:      h.graph.Waypoint(idx).Map,
		Pose:     loc.Pose,
		Waypoint: idx,
	}
	return func() { h.updater.UpdatePosition(u) }
}

// checkPathFinish handles a robot that reports an empty remaining path.
// The final position is checked against the plan's last waypoint and the
// completion fires exactly once.
func (h *Handle) checkPathFinish(s State, after *deferred) {
	done := h.travel.pathDone
	h.travel.pathDone = nil
	h.travel.arrival = nil

	if target, ok := h.travel.plan.Last(); ok {
		dist := target.Pose.Point().DistanceTo(s.Location.Pose.Point())
		switch {
		case dist > h.tol.ArrivalTolerance:
			h.logf("command: robot [%s] of [%s] finished its path %.2fm from the final waypoint",
				h.robot, h.fleet, dist)
			h.estimateState(s.Location, after)
		case target.GraphIndex != nil:
			h.travel.lastKnownWaypoint = *target.GraphIndex
			after.add(h.positionAt(s.Location, *target.GraphIndex))
		default:
			h.estimateState(s.Location, after)
		}
	} else {
		h.estimateState(s.Location, after)
	}
	after.add(done)
}

// estimatePathTraveling works out which plan waypoint the robot is heading
// to from the length of its remaining path, reports the arrival estimate,
// and places the robot on that waypoint's approach lanes.
func (h *Handle) estimatePathTraveling(s State, after *deferred) {
	n := len(h.travel.plan)
	if n == 0 {
		h.estimateState(s.Location, after)
		return
	}
	i := n - len(s.Path)
	if i < 0 {
		i = 0
	}
	h.travel.targetPlanIndex = i
	target := h.travel.plan[i]

	if i > 0 {
		if prev := h.travel.plan[i-1].GraphIndex; prev != nil {
			h.travel.lastKnownWaypoint = *prev
		}
	}

	if arrival := h.travel.arrival; arrival != nil {
		remaining := h.traits.SegmentDuration(s.Location.Pose, target.Pose)
		after.add(func() { arrival(i, remaining) })
	}

	p := s.Location.Pose.Point()
	var lanes []int
	for _, l := range target.ApproachLanes {
		if d, ok := h.graph.DistanceToLane(l, s.Location.Map, p); ok && d <= h.tol.LaneSnap {
			lanes = append(lanes, l)
		}
	}
	switch {
	case len(lanes) > 0:
		h.report(PositionUpdate{Kind: PositionOnLanes, Map: s.Location.Map, Pose: s.Location.Pose, Lanes: lanes}, after)
	case target.GraphIndex != nil && target.Pose.Point().DistanceTo(p) <= h.tol.WaypointSnap:
		after.add(h.positionAt(s.Location, *target.GraphIndex))
	default:
		h.estimateState(s.Location, after)
	}
}

func (h *Handle) report(u PositionUpdate, after *deferred) {
	after.add(func() { h.updater.UpdatePosition(u) })
}
