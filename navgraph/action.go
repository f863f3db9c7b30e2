package navgraph

import "fmt"

// ActionKind tags the variant held by a LaneAction.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionDock
	ActionDoorOpen
	ActionDoorClose
	ActionLiftSessionBegin
	ActionLiftMove
	ActionLiftDoorOpen
	ActionLiftSessionEnd
)

var actionKindNames = map[ActionKind]string{
	ActionNone:             "none",
	ActionDock:             "dock",
	ActionDoorOpen:         "door_open",
	ActionDoorClose:        "door_close",
	ActionLiftSessionBegin: "lift_session_begin",
	ActionLiftMove:         "lift_move",
	ActionLiftDoorOpen:     "lift_door_open",
	ActionLiftSessionEnd:   "lift_session_end",
}

func (k ActionKind) String() string {
	if s, ok := actionKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// LaneAction is an event attached to the entry or exit of a lane. Only the
// fields relevant to Kind are populated: Name holds the dock, door or lift
// name and Floor the lift destination.
type LaneAction struct {
	Kind  ActionKind
	Name  string
	Floor string
}

func Dock(name string) LaneAction      { return LaneAction{Kind: ActionDock, Name: name} }
func DoorOpen(door string) LaneAction  { return LaneAction{Kind: ActionDoorOpen, Name: door} }
func DoorClose(door string) LaneAction { return LaneAction{Kind: ActionDoorClose, Name: door} }

func LiftSessionBegin(lift, floor string) LaneAction {
	return LaneAction{Kind: ActionLiftSessionBegin, Name: lift, Floor: floor}
}

func LiftMove(lift, floor string) LaneAction {
	return LaneAction{Kind: ActionLiftMove, Name: lift, Floor: floor}
}

func LiftDoorOpen(lift, floor string) LaneAction {
	return LaneAction{Kind: ActionLiftDoorOpen, Name: lift, Floor: floor}
}

func LiftSessionEnd(lift, floor string) LaneAction {
	return LaneAction{Kind: ActionLiftSessionEnd, Name: lift, Floor: floor}
}

// IsDock reports whether the action docks into the named dock.
func (a LaneAction) IsDock(name string) bool {
	switch a.Kind {
	case ActionDock:
		return a.Name == name
	case ActionNone, ActionDoorOpen, ActionDoorClose,
		ActionLiftSessionBegin, ActionLiftMove, ActionLiftDoorOpen, ActionLiftSessionEnd:
		return false
	default:
		return false
	}
}

func (a LaneAction) String() string {
	switch a.Kind {
	case ActionNone:
		return "none"
	case ActionLiftSessionBegin, ActionLiftMove, ActionLiftDoorOpen, ActionLiftSessionEnd:
		return fmt.Sprintf("%s(%s@%s)", a.Kind, a.Name, a.Floor)
	default:
		return fmt.Sprintf("%s(%s)", a.Kind, a.Name)
	}
}
