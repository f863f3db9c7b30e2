package engine

import (
	"time"

	"github.com/Tractonomy/free-fleet-ros2/command"
	"github.com/Tractonomy/free-fleet-ros2/fleet"
	"github.com/Tractonomy/free-fleet-ros2/plan"
)

const (
	EventRobotAdded EventType = iota + 1
	EventRobotUnplaceable
	EventRobotPosition
	EventRobotBattery
	EventRobotArrival
	EventRobotInterrupted
	EventRobotRoute
	EventPathRequested
	EventPathFinished
	EventDockRequested
	EventDockFinished
	EventLanesChanged
	EventMessagingConnected
	EventMessagingDisconnected
)

var eventNames = map[EventType]string{
	EventRobotAdded:            "robot_added",
	EventRobotUnplaceable:      "robot_unplaceable",
	EventRobotPosition:         "robot_position",
	EventRobotBattery:          "robot_battery",
	EventRobotArrival:          "robot_arrival",
	EventRobotInterrupted:      "robot_interrupted",
	EventRobotRoute:            "robot_route",
	EventPathRequested:         "path_requested",
	EventPathFinished:          "path_finished",
	EventDockRequested:         "dock_requested",
	EventDockFinished:          "dock_finished",
	EventLanesChanged:          "lanes_changed",
	EventMessagingConnected:    "messaging_connected",
	EventMessagingDisconnected: "messaging_disconnected",
}

func (t EventType) String() string {
	if n, ok := eventNames[t]; ok {
		return n
	}
	return "unknown"
}

// --- Event payloads ---

type RobotAddedEvent struct {
	Robot  string
	Model  string
	Starts []fleet.Start
}

type RobotUnplaceableEvent struct {
	Robot string
	Hint  string
}

type RobotPositionEvent struct {
	Robot  string
	Update command.PositionUpdate
}

type RobotBatteryEvent struct {
	Robot string
	SOC   float64
}

type RobotArrivalEvent struct {
	Robot     string
	CommandID uint64
	PlanIndex int
	Remaining time.Duration
}

type RobotInterruptedEvent struct {
	Robot     string
	CommandID uint64
}

type RobotRouteEvent struct {
	Robot      string
	Map        string
	Trajectory plan.Trajectory
}

type PathRequestedEvent struct {
	Robot     string
	CommandID uint64
	Waypoints []int
	Actor     string
}

type PathFinishedEvent struct {
	Robot     string
	CommandID uint64
}

type DockRequestedEvent struct {
	Robot     string
	CommandID uint64
	Dock      string
	Actor     string
}

type DockFinishedEvent struct {
	Robot     string
	CommandID uint64
	Dock      string
}

type LanesChangedEvent struct {
	Opened      []int
	Closed      []int
	NewlyClosed []int
	AllClosed   []int
	Actor       string
}

type ConnectionEvent struct {
	Detail string
}
