// Package command drives a single robot through path and docking requests
// and reconciles its telemetry against what it was asked to do.
package command

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Tractonomy/free-fleet-ros2/navgraph"
	"github.com/Tractonomy/free-fleet-ros2/plan"
)

var (
	ErrUnknownDock     = errors.New("no lane docks into the named dock")
	ErrUnknownWaypoint = errors.New("unknown waypoint")
	ErrAmbiguousDock   = errors.New("several lanes dock into the named dock")
)

const dockingParameter = "docking"

type LogFunc func(format string, args ...any)

type Config struct {
	Fleet      string
	Robot      string
	Graph      *navgraph.Graph
	Traits     plan.VehicleTraits
	Dispatcher Dispatcher
	Updater    Updater
	Timing     Timing
	Tolerances Tolerances
	DockRule   DockRule
	// Now defaults to time.Now. Its readings must be monotonic.
	Now     func() time.Time
	LogFunc LogFunc
}

type travelInfo struct {
	plan              plan.Plan
	targetPlanIndex   int // -1 when unknown
	arrival           ArrivalEstimator
	pathDone          Completion
	lastKnownWaypoint int // -1 when unknown
}

// Handle is the command state for one robot. All methods are safe for
// concurrent use; callbacks and planner updates run after the handle's lock
// is released, so they may call back into the Handle.
type Handle struct {
	mu sync.Mutex

	fleet      string
	robot      string
	graph      *navgraph.Graph
	traits     plan.VehicleTraits
	dispatcher Dispatcher
	updater    Updater
	timing     Timing
	tol        Tolerances
	dockRule   DockRule
	now        func() time.Time
	logf       LogFunc

	commandID uint64
	travel    travelInfo
	lastState *State
	// interrupted latches the first adapter-error report for the current path.
	interrupted bool

	pathRequest     PathRequest
	pathRequestedAt time.Time

	dockRequest     ModeRequest
	dockTarget      int
	dockRequestedAt time.Time
	dockScheduledAt time.Time
	dockDone        Completion
}

func New(cfg Config) *Handle {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LogFunc == nil {
		cfg.LogFunc = log.Printf
	}
	def := DefaultTiming()
	if cfg.Timing.ResendInterval <= 0 {
		cfg.Timing.ResendInterval = def.ResendInterval
	}
	if cfg.Timing.ScheduleRefresh <= 0 {
		cfg.Timing.ScheduleRefresh = def.ScheduleRefresh
	}
	if cfg.Tolerances == (Tolerances{}) {
		cfg.Tolerances = DefaultTolerances()
	}
	return &Handle{
		fleet:      cfg.Fleet,
		robot:      cfg.Robot,
		graph:      cfg.Graph,
		traits:     cfg.Traits,
		dispatcher: cfg.Dispatcher,
		updater:    cfg.Updater,
		timing:     cfg.Timing,
		tol:        cfg.Tolerances,
		dockRule:   cfg.DockRule,
		now:        cfg.Now,
		logf:       cfg.LogFunc,
		travel: travelInfo{
			targetPlanIndex:   -1,
			lastKnownWaypoint: -1,
		},
		dockTarget:      -1,
		dockScheduledAt: cfg.Now(),
	}
}

func (h *Handle) Robot() string { return h.robot }
func (h *Handle) Fleet() string { return h.fleet }

// Snapshot is a read-only view of a Handle's command state.
type Snapshot struct {
	Robot             string
	CommandID         uint64
	Following         bool
	Docking           bool
	Interrupted       bool
	TargetPlanIndex   int
	LastKnownWaypoint int
	LastState         *State
}

func (h *Handle) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Snapshot{
		Robot:             h.robot,
		CommandID:         h.commandID,
		Following:         h.travel.pathDone != nil,
		Docking:           h.dockDone != nil,
		Interrupted:       h.interrupted,
		TargetPlanIndex:   h.travel.targetPlanIndex,
		LastKnownWaypoint: h.travel.lastKnownWaypoint,
	}
	if h.lastState != nil {
		st := *h.lastState
		s.LastState = &st
	}
	return s
}

// FollowNewPath replaces any outstanding command with p. arrival is called
// with progress estimates and done once the robot reports it has finished.
func (h *Handle) FollowNewPath(p plan.Plan, arrival ArrivalEstimator, done Completion) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clearLastCommand()

	h.travel.targetPlanIndex = -1
	h.travel.plan = append(plan.Plan(nil), p...)
	h.travel.arrival = arrival
	h.travel.pathDone = done
	h.interrupted = false

	h.commandID++
	req := PathRequest{
		Fleet:     h.fleet,
		Robot:     h.robot,
		CommandID: h.commandID,
		Path:      make([]Location, 0, len(p)),
	}
	mapName := ""
	if h.lastState != nil {
		mapName = h.lastState.Location.Map
	}
	for _, wp := range p {
		if wp.GraphIndex != nil {
			mapName = h.graph.Waypoint(*wp.GraphIndex).Map
			req.Nodes = append(req.Nodes, NavigationPoint{WaypointIndex: *wp.GraphIndex, Yaw: wp.Pose.Yaw})
		}
		req.Path = append(req.Path, Location{Time: wp.Time, Map: mapName, Pose: wp.Pose})
	}
	h.pathRequest = req
	h.pathRequestedAt = h.now()
	h.sendPath()
}

// Dock replaces any outstanding command with a request to dock into the
// named dock. The dock must be the entry action of some lane; otherwise
// ErrUnknownDock is returned and nothing changes. Under DockUnique a name
// carried by several lanes fails with ErrAmbiguousDock.
func (h *Handle) Dock(name string, done Completion) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	lane, err := h.resolveDock(name)
	if err != nil {
		return fmt.Errorf("robot %s of %s: dock %q: %w", h.robot, h.fleet, name, err)
	}
	h.clearLastCommand()

	h.dockDone = done
	h.dockTarget = lane.Entry
	h.commandID++
	h.dockRequest = ModeRequest{
		Fleet:      h.fleet,
		Robot:      h.robot,
		CommandID:  h.commandID,
		Mode:       ModeDocking,
		Parameters: []ModeParameter{{Name: dockingParameter, Value: name}},
	}
	h.dockRequestedAt = h.now()
	h.sendDock()

	h.logf("command: requesting robot [%s] of [%s] to dock into waypoint [%s]",
		h.robot, h.fleet, h.graph.Waypoint(lane.Entry).Label())
	return nil
}

// UpdateState reconciles one telemetry report.
func (h *Handle) UpdateState(s State) {
	var after deferred
	h.mu.Lock()
	h.updateState(s, &after)
	h.mu.Unlock()
	after.run()
}

func (h *Handle) updateState(s State, after *deferred) {
	st := s
	st.Path = append([]Location(nil), s.Path...)
	h.lastState = &st

	soc := s.BatteryPercent / 100.0
	if soc >= 0 && soc <= 1 {
		after.add(func() { h.updater.UpdateBatterySOC(soc) })
	} else {
		h.logf("command: robot [%s] of [%s] reported battery %.1f%% outside [0,100]; battery soc not updated",
			h.robot, h.fleet, s.BatteryPercent)
	}

	h.travel.targetPlanIndex = -1

	switch {
	case h.travel.pathDone != nil:
		if s.CommandID != h.pathRequest.CommandID {
			if now := h.now(); now.Sub(h.pathRequestedAt) > h.timing.ResendInterval {
				h.pathRequestedAt = now
				h.sendPath()
			}
			h.estimateState(s.Location, after)
			return
		}

		if s.Mode == ModeAdapterError {
			if h.interrupted {
				return
			}
			h.logf("command: fleet [%s] reported interruption for [%s]", h.fleet, h.robot)
			h.interrupted = true
			h.estimateState(s.Location, after)
			after.add(h.updater.Interrupted)
			return
		}

		if len(s.Path) == 0 {
			h.checkPathFinish(s, after)
			return
		}
		h.estimatePathTraveling(s, after)

	case h.dockDone != nil:
		now := h.now()
		if s.CommandID != h.dockRequest.CommandID {
			if now.Sub(h.dockRequestedAt) > h.timing.ResendInterval {
				h.dockRequestedAt = now
				h.sendDock()
			}
			return
		}

		if s.Mode != ModeDocking {
			h.travel.lastKnownWaypoint = h.dockTarget
			after.add(h.positionAt(s.Location, h.dockTarget))
			after.add(h.dockDone)
			h.dockDone = nil
			return
		}

		if len(s.Path) > 0 && now.Sub(h.dockScheduledAt) > h.timing.ScheduleRefresh {
			h.refreshDockSchedule(s, now, after)
		}

	default:
		h.estimateState(s.Location, after)
	}
}

func (h *Handle) refreshDockSchedule(s State, now time.Time, after *deferred) {
	poses := make([]plan.Pose, 0, len(s.Path)+1)
	poses = append(poses, s.Location.Pose)
	for _, loc := range s.Path {
		poses = append(poses, loc.Pose)
	}
	traj := plan.Interpolate(h.traits, s.Location.Time, poses)
	if len(traj) < 2 {
		return
	}
	// Looked up under the lock so the refresh time only advances when a
	// route is actually published.
	participant := h.updater.Participant()
	if participant == nil {
		return
	}
	h.dockScheduledAt = now
	mapName := s.Location.Map
	after.add(func() { participant.SetRoute(mapName, traj) })
}

func (h *Handle) resolveDock(name string) (navgraph.Lane, error) {
	lanes := h.graph.DockLanes(name)
	switch {
	case len(lanes) == 0:
		return navgraph.Lane{}, ErrUnknownDock
	case len(lanes) > 1 && h.dockRule == DockUnique:
		return navgraph.Lane{}, ErrAmbiguousDock
	}
	return lanes[0], nil
}

func (h *Handle) clearLastCommand() {
	h.travel.arrival = nil
	h.travel.pathDone = nil
	h.dockDone = nil
}

func (h *Handle) sendPath() {
	if err := h.dispatcher.SendPath(h.pathRequest); err != nil {
		h.logf("command: send path %d to [%s]: %v", h.pathRequest.CommandID, h.robot, err)
	}
}

func (h *Handle) sendDock() {
	if err := h.dispatcher.SendMode(h.dockRequest); err != nil {
		h.logf("command: send dock %d to [%s]: %v", h.dockRequest.CommandID, h.robot, err)
	}
}

// deferred collects work to run once the handle's lock is released.
type deferred []func()

func (d *deferred) add(fn func()) {
	if fn != nil {
		*d = append(*d, fn)
	}
}

func (d deferred) run() {
	for _, fn := range d {
		fn()
	}
}
