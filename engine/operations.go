package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Tractonomy/free-fleet-ros2/command"
	"github.com/Tractonomy/free-fleet-ros2/fleet"
	"github.com/Tractonomy/free-fleet-ros2/navgraph"
	"github.com/Tractonomy/free-fleet-ros2/plan"
	"github.com/Tractonomy/free-fleet-ros2/robotstate"
)

var (
	ErrEmptyPath  = errors.New("path has no waypoints")
	ErrLaneClosed = errors.New("path uses a closed lane")
)

// ResolveWaypoint accepts a waypoint name, or an index written as "#12" or
// "12".
func (e *Engine) ResolveWaypoint(ref string) (int, error) {
	if w, ok := e.graph.FindWaypoint(ref); ok {
		return w.Index, nil
	}
	if i, err := strconv.Atoi(strings.TrimPrefix(ref, "#")); err == nil && e.graph.HasWaypoint(i) {
		return i, nil
	}
	return -1, fmt.Errorf("waypoint %q: %w", ref, command.ErrUnknownWaypoint)
}

func (e *Engine) ResolveWaypoints(refs []string) ([]int, error) {
	out := make([]int, len(refs))
	for i, ref := range refs {
		idx, err := e.ResolveWaypoint(ref)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// FollowPath sends robot along the given waypoints, which must be joined by
// open lanes. It returns the id of the new command.
func (e *Engine) FollowPath(robot string, waypoints []int, actor string) (uint64, error) {
	if len(waypoints) == 0 {
		return 0, ErrEmptyPath
	}
	h, err := e.fleet.Robot(robot)
	if err != nil {
		return 0, err
	}
	for _, w := range waypoints {
		if !e.graph.HasWaypoint(w) {
			return 0, fmt.Errorf("waypoint %d: %w", w, command.ErrUnknownWaypoint)
		}
	}
	p, err := plan.FromWaypoints(e.graph, e.traits, e.now(), waypoints)
	if err != nil {
		return 0, err
	}
	for _, wp := range p {
		if l := e.planner.blocked(wp.ApproachLanes); l >= 0 {
			return 0, fmt.Errorf("lane %d: %w", l, ErrLaneClosed)
		}
	}

	var id atomic.Uint64
	arrival := func(planIndex int, remaining time.Duration) {
		e.Events.Emit(Event{Type: EventRobotArrival, Payload: RobotArrivalEvent{
			Robot:     robot,
			CommandID: id.Load(),
			PlanIndex: planIndex,
			Remaining: remaining,
		}})
	}
	done := func() {
		e.Events.Emit(Event{Type: EventPathFinished, Payload: PathFinishedEvent{Robot: robot, CommandID: id.Load()}})
	}
	h.FollowNewPath(p, arrival, done)
	id.Store(h.Snapshot().CommandID)

	e.Events.Emit(Event{Type: EventPathRequested, Payload: PathRequestedEvent{
		Robot:     robot,
		CommandID: id.Load(),
		Waypoints: waypoints,
		Actor:     actor,
	}})
	return id.Load(), nil
}

// Dock asks robot to dock into the named dock and returns the new command id.
func (e *Engine) Dock(robot, dock, actor string) (uint64, error) {
	h, err := e.fleet.Robot(robot)
	if err != nil {
		return 0, err
	}
	var id atomic.Uint64
	done := func() {
		e.Events.Emit(Event{Type: EventDockFinished, Payload: DockFinishedEvent{Robot: robot, CommandID: id.Load(), Dock: dock}})
	}
	if err := h.Dock(dock, done); err != nil {
		return 0, err
	}
	id.Store(h.Snapshot().CommandID)

	e.Events.Emit(Event{Type: EventDockRequested, Payload: DockRequestedEvent{
		Robot:     robot,
		CommandID: id.Load(),
		Dock:      dock,
		Actor:     actor,
	}})
	return id.Load(), nil
}

// HandleFleetState records the reported mode of each robot and passes the
// report to the fleet registry.
func (e *Engine) HandleFleetState(fs fleet.FleetState) {
	if fs.Name == e.cfg.Fleet.Name && e.robots != nil {
		for _, s := range fs.Robots {
			e.robots.Update(s.Name, func(snap *robotstate.Snapshot) {
				snap.Model = s.Model
				snap.Mode = s.Mode.String()
				snap.CommandID = s.CommandID
				snap.Map = s.Location.Map
				snap.X = s.Location.Pose.X
				snap.Y = s.Location.Pose.Y
				snap.Yaw = s.Location.Pose.Yaw
			})
		}
	}
	e.fleet.HandleFleetState(fs)
}

// HandleLaneRequest applies a lane request, records it and returns the
// newly closed lanes. Requests for other fleets are ignored.
func (e *Engine) HandleLaneRequest(req fleet.LaneRequest) navgraph.LaneSet {
	if req.Fleet != "" && req.Fleet != e.cfg.Fleet.Name {
		return nil
	}
	if req.Actor == "" {
		req.Actor = "system"
	}
	newly := e.fleet.HandleLaneRequest(req)

	opened := e.knownLanes(req.Open)
	closed := e.knownLanes(req.Close)
	if e.db != nil && (len(opened) > 0 || len(closed) > 0) {
		if err := e.db.RecordLaneChanges(e.cfg.Fleet.Name, opened, closed, req.Actor); err != nil {
			e.logFn("engine: record lane changes: %v", err)
		}
	}

	e.Events.Emit(Event{Type: EventLanesChanged, Payload: LanesChangedEvent{
		Opened:      opened,
		Closed:      closed,
		NewlyClosed: newly.Sorted(),
		AllClosed:   e.fleet.ClosedLanes(),
		Actor:       req.Actor,
	}})
	return newly
}

// SetLanes opens and closes lanes of this fleet on behalf of actor.
func (e *Engine) SetLanes(open, closeLanes []int, actor string) navgraph.LaneSet {
	return e.HandleLaneRequest(fleet.LaneRequest{
		Fleet: e.cfg.Fleet.Name,
		Open:  open,
		Close: closeLanes,
		Actor: actor,
	})
}

func (e *Engine) knownLanes(lanes []int) []int {
	var out []int
	for _, l := range lanes {
		if e.graph.HasLane(l) {
			out = append(out, l)
		}
	}
	return out
}
