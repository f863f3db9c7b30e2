package command

import (
	"fmt"
	"time"

	"github.com/Tractonomy/free-fleet-ros2/plan"
)

// Mode is the operating mode a robot reports, or is asked to enter.
type Mode int

const (
	ModeIdle Mode = iota
	ModeCharging
	ModeMoving
	ModePaused
	ModeWaiting
	ModeEmergency
	ModeGoingHome
	ModeDocking
	ModeAdapterError
)

var modeNames = []string{
	ModeIdle:         "idle",
	ModeCharging:     "charging",
	ModeMoving:       "moving",
	ModePaused:       "paused",
	ModeWaiting:      "waiting",
	ModeEmergency:    "emergency",
	ModeGoingHome:    "going_home",
	ModeDocking:      "docking",
	ModeAdapterError: "adapter_error",
}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps a wire name back to a Mode.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown robot mode %q", s)
}

// Location is a timestamped pose on a named map.
type Location struct {
	Time time.Time
	Map  string
	Pose plan.Pose
}

// State is one telemetry report from a robot. CommandID echoes the id of
// the command the robot is currently executing. Path holds the waypoints
// the robot has left to visit.
type State struct {
	Name           string
	Model          string
	CommandID      uint64
	Mode           Mode
	BatteryPercent float64
	Location       Location
	Path           []Location
}

// NavigationPoint is a graph waypoint forwarded alongside a path request.
type NavigationPoint struct {
	WaypointIndex int
	Yaw           float64
}

// PathRequest asks a robot to drive Path. Nodes carries the graph indices
// of the path points that sit on waypoints.
type PathRequest struct {
	Fleet     string
	Robot     string
	CommandID uint64
	Path      []Location
	Nodes     []NavigationPoint
}

type ModeParameter struct {
	Name  string
	Value string
}

// ModeRequest asks a robot to switch mode.
type ModeRequest struct {
	Fleet      string
	Robot      string
	CommandID  uint64
	Mode       Mode
	Parameters []ModeParameter
}

// Dispatcher delivers commands to robots. Sends are fire-and-forget; a
// returned error is logged and the resend policy retries.
type Dispatcher interface {
	SendPath(req PathRequest) error
	SendMode(req ModeRequest) error
}

type PositionKind int

const (
	// PositionOffGraph: only the map is known.
	PositionOffGraph PositionKind = iota
	// PositionAtWaypoint: the robot is at Waypoint.
	PositionAtWaypoint
	// PositionOnLanes: the robot is on, or heading along, one of Lanes.
	PositionOnLanes
)

var positionKindNames = []string{"off_graph", "at_waypoint", "on_lanes"}

func (k PositionKind) String() string {
	if k >= 0 && int(k) < len(positionKindNames) {
		return positionKindNames[k]
	}
	return fmt.Sprintf("PositionKind(%d)", int(k))
}

// PositionUpdate is a position estimate handed to the planner.
type PositionUpdate struct {
	Kind     PositionKind
	Map      string
	Pose     plan.Pose
	Waypoint int
	Lanes    []int
}

// Participant is a robot's entry in the traffic schedule.
type Participant interface {
	SetRoute(mapName string, traj plan.Trajectory)
}

// Updater is the planner's handle on one robot.
type Updater interface {
	// Interrupted asks the planner to replan the robot's current task.
	Interrupted()
	UpdateBatterySOC(soc float64)
	UpdatePosition(u PositionUpdate)
	// Participant returns nil when the robot has no schedule entry.
	Participant() Participant
}

// ArrivalEstimator receives the plan index the robot is heading to and the
// estimated time until it arrives.
type ArrivalEstimator func(planIndex int, remaining time.Duration)

// Completion is invoked once when a path or dock request finishes.
type Completion func()

// Timing holds the throttles applied by a Handle.
type Timing struct {
	// ResendInterval is the minimum gap between re-dispatches of an
	// unacknowledged command.
	ResendInterval time.Duration
	// ScheduleRefresh is the minimum gap between docking route updates.
	ScheduleRefresh time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		ResendInterval:  200 * time.Millisecond,
		ScheduleRefresh: time.Second,
	}
}

// DockRule decides which lane a dock name resolves to when several lanes
// dock into it.
type DockRule int

const (
	// DockFirstMatch picks the lowest-indexed lane.
	DockFirstMatch DockRule = iota
	// DockUnique rejects names carried by more than one lane.
	DockUnique
)

// ParseDockRule maps "first" or "unique" to a DockRule. Empty means first.
func ParseDockRule(s string) (DockRule, error) {
	switch s {
	case "", "first":
		return DockFirstMatch, nil
	case "unique":
		return DockUnique, nil
	}
	return 0, fmt.Errorf("unknown dock rule %q", s)
}

// Tolerances bound how far reported positions may sit from the graph.
type Tolerances struct {
	// WaypointSnap is how close a robot must be to a waypoint to be at it.
	WaypointSnap float64
	// LaneSnap is how close a robot must be to a lane to be on it.
	LaneSnap float64
	// ArrivalTolerance is how far from the final waypoint a finished path
	// may end before the arrival is logged as a mismatch.
	ArrivalTolerance float64
}

func DefaultTolerances() Tolerances {
	return Tolerances{WaypointSnap: 0.5, LaneSnap: 1.0, ArrivalTolerance: 2.0}
}
