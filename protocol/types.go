package protocol

// Message types.
const (
	// Robots -> adapter (fleet state topic)
	TypeFleetState = "fleet.state"
	// Operators -> adapter (lane request topic)
	TypeLaneRequest = "lane.request"

	// Adapter -> robots (path and mode request topics)
	TypePathRequest = "path.request"
	TypeModeRequest = "mode.request"
	// Adapter -> operators and planners
	TypeClosedLanes = "lanes.closed"
	TypeRobotEvent  = "robot.event"
)

// Roles for Address.Role.
const (
	RoleAdapter = "adapter"
	RoleRobot   = "robot"
	RoleOps     = "ops"
)

// Robot event kinds carried in RobotEvent.Event.
const (
	EventInterrupted  = "interrupted"
	EventPathFinished = "path_finished"
	EventDockFinished = "dock_finished"
	EventUnplaceable  = "unplaceable"
)

// Protocol version.
const Version = 1
