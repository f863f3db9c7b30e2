package protocol

import "time"

// Location is a timestamped pose on a level.
type Location struct {
	T     time.Time `json:"t"`
	X     float64   `json:"x"`
	Y     float64   `json:"y"`
	Yaw   float64   `json:"yaw"`
	Level string    `json:"level_name,omitempty"`
}

// --- Robots -> adapter ---

type RobotState struct {
	Name           string     `json:"name"`
	Model          string     `json:"model,omitempty"`
	TaskID         uint64     `json:"task_id"`
	Mode           string     `json:"mode"`
	BatteryPercent float64    `json:"battery_percent"`
	Location       Location   `json:"location"`
	Path           []Location `json:"path,omitempty"`
}

type FleetState struct {
	Name   string       `json:"name"`
	Robots []RobotState `json:"robots"`
}

// --- Operators -> adapter ---

// LaneRequest opens and closes lanes. An empty FleetName addresses every fleet.
type LaneRequest struct {
	FleetName  string `json:"fleet_name"`
	OpenLanes  []int  `json:"open_lanes,omitempty"`
	CloseLanes []int  `json:"close_lanes,omitempty"`
}

// --- Adapter -> robots ---

type NavigationPoint struct {
	WaypointIndex int     `json:"waypoint_index"`
	Yaw           float64 `json:"yaw"`
}

type PathRequest struct {
	FleetName string            `json:"fleet_name"`
	RobotName string            `json:"robot_name"`
	TaskID    uint64            `json:"task_id"`
	Path      []Location        `json:"path"`
	Nodes     []NavigationPoint `json:"nodes,omitempty"`
}

type ModeParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type ModeRequest struct {
	FleetName  string          `json:"fleet_name"`
	RobotName  string          `json:"robot_name"`
	TaskID     uint64          `json:"task_id"`
	Mode       string          `json:"mode"`
	Parameters []ModeParameter `json:"parameters,omitempty"`
}

// --- Adapter -> operators and planners ---

type ClosedLanes struct {
	FleetName        string `json:"fleet_name"`
	ClosedLanes      []int  `json:"closed_lanes"`
	GraphFingerprint string `json:"graph_fingerprint,omitempty"`
}

type RobotEvent struct {
	FleetName string `json:"fleet_name"`
	RobotName string `json:"robot_name"`
	Event     string `json:"event"`
	TaskID    uint64 `json:"task_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
}
