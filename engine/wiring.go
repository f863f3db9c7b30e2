package engine

import (
	"fmt"
	"strings"

	"github.com/Tractonomy/free-fleet-ros2/command"
	"github.com/Tractonomy/free-fleet-ros2/fleet"
	"github.com/Tractonomy/free-fleet-ros2/protocol"
	"github.com/Tractonomy/free-fleet-ros2/robotstate"
)

func (e *Engine) wireEventHandlers() {
	// Robot placed on the graph: persist immediately and audit
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RobotAddedEvent)
		e.clearUnplaced(ev.Robot)
		e.updateRobot(ev.Robot, true, func(s *robotstate.Snapshot) {
			s.Model = ev.Model
			s.Placed = true
			s.Hint = ""
			if len(ev.Starts) > 0 {
				s.Waypoint = ev.Starts[0].Waypoint
			}
		})
		e.audit("robot", ev.Robot, "added", "", describeStarts(ev.Starts), "system")
	}, EventRobotAdded)

	// Unplaceable robot: keep the latest hint, notify on the first sighting
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RobotUnplaceableEvent)
		e.updateRobot(ev.Robot, false, func(s *robotstate.Snapshot) {
			s.Placed = false
			s.Hint = ev.Hint
		})
		if e.markUnplaced(ev.Robot, ev.Hint) {
			e.notify(ev.Robot, protocol.EventUnplaceable, 0, ev.Hint)
		}
	}, EventRobotUnplaceable)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RobotPositionEvent)
		e.updateRobot(ev.Robot, false, func(s *robotstate.Snapshot) {
			u := ev.Update
			s.Position = u.Kind.String()
			s.Map = u.Map
			s.X, s.Y, s.Yaw = u.Pose.X, u.Pose.Y, u.Pose.Yaw
			s.Lanes = append([]int(nil), u.Lanes...)
			if u.Kind == command.PositionAtWaypoint {
				s.Waypoint = u.Waypoint
			}
		})
	}, EventRobotPosition)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RobotBatteryEvent)
		e.updateRobot(ev.Robot, false, func(s *robotstate.Snapshot) {
			s.BatterySOC = ev.SOC
		})
	}, EventRobotBattery)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RobotRouteEvent)
		route := &robotstate.Route{Map: ev.Map}
		for _, p := range ev.Trajectory {
			route.Points = append(route.Points, robotstate.RoutePoint{
				Time: p.Time, X: p.Pose.X, Y: p.Pose.Y, Yaw: p.Pose.Yaw,
			})
		}
		e.updateRobot(ev.Robot, false, func(s *robotstate.Snapshot) {
			s.Route = route
		})
	}, EventRobotRoute)

	// Interruptions: the external planner must replan
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RobotInterruptedEvent)
		e.logFn("engine: robot [%s] interrupted during command %d", ev.Robot, ev.CommandID)
		e.audit("robot", ev.Robot, "interrupted", "", fmt.Sprintf("command %d", ev.CommandID), "system")
		e.notify(ev.Robot, protocol.EventInterrupted, ev.CommandID, "")
	}, EventRobotInterrupted)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(PathRequestedEvent)
		e.audit("robot", ev.Robot, "path_requested", "", fmt.Sprintf("command %d waypoints %v", ev.CommandID, ev.Waypoints), ev.Actor)
	}, EventPathRequested)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(PathFinishedEvent)
		e.logFn("engine: robot [%s] finished path %d", ev.Robot, ev.CommandID)
		e.updateRobot(ev.Robot, false, func(s *robotstate.Snapshot) { s.Route = nil })
		e.audit("robot", ev.Robot, "path_finished", "", fmt.Sprintf("command %d", ev.CommandID), "system")
		e.notify(ev.Robot, protocol.EventPathFinished, ev.CommandID, "")
	}, EventPathFinished)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(DockRequestedEvent)
		e.audit("robot", ev.Robot, "dock_requested", "", fmt.Sprintf("command %d dock %s", ev.CommandID, ev.Dock), ev.Actor)
	}, EventDockRequested)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(DockFinishedEvent)
		e.logFn("engine: robot [%s] finished docking into [%s]", ev.Robot, ev.Dock)
		e.updateRobot(ev.Robot, false, func(s *robotstate.Snapshot) { s.Route = nil })
		e.audit("robot", ev.Robot, "dock_finished", "", ev.Dock, "system")
		e.notify(ev.Robot, protocol.EventDockFinished, ev.CommandID, ev.Dock)
	}, EventDockFinished)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(LanesChangedEvent)
		if len(ev.Opened) == 0 && len(ev.Closed) == 0 {
			return
		}
		e.audit("lanes", e.cfg.Fleet.Name, "changed",
			fmt.Sprintf("opened %v", ev.Opened), fmt.Sprintf("closed %v", ev.Closed), ev.Actor)
	}, EventLanesChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ConnectionEvent)
		e.logFn("engine: %s", ev.Detail)
	}, EventMessagingConnected, EventMessagingDisconnected)
}

func (e *Engine) updateRobot(name string, persist bool, fn func(*robotstate.Snapshot)) {
	if e.robots == nil {
		return
	}
	if persist {
		e.robots.UpdateAndPersist(name, fn)
		return
	}
	e.robots.Update(name, fn)
}

func (e *Engine) audit(entityType, entity, action, oldValue, newValue, actor string) {
	if e.db == nil {
		return
	}
	if err := e.db.AppendAudit(entityType, entity, action, oldValue, newValue, actor); err != nil {
		e.logFn("engine: audit %s %s %s: %v", entityType, entity, action, err)
	}
}

func (e *Engine) notify(robot, event string, commandID uint64, detail string) {
	if e.notifier == nil {
		return
	}
	err := e.notifier.PublishRobotEvent(protocol.RobotEvent{
		FleetName: e.cfg.Fleet.Name,
		RobotName: robot,
		Event:     event,
		TaskID:    commandID,
		Detail:    detail,
	})
	if err != nil {
		e.logFn("engine: notify %s for robot [%s]: %v", event, robot, err)
	}
}

// markUnplaced records hint for robot and reports whether this is the first
// unplaceable sighting since the robot was last placed.
func (e *Engine) markUnplaced(robot, hint string) bool {
	e.unplacedMu.Lock()
	defer e.unplacedMu.Unlock()
	_, seen := e.unplaced[robot]
	e.unplaced[robot] = hint
	return !seen
}

func (e *Engine) clearUnplaced(robot string) {
	e.unplacedMu.Lock()
	defer e.unplacedMu.Unlock()
	delete(e.unplaced, robot)
}

func describeStarts(starts []fleet.Start) string {
	parts := make([]string, 0, len(starts))
	for _, s := range starts {
		if s.OnLane() {
			parts = append(parts, fmt.Sprintf("lane %d -> waypoint %d", s.Lane, s.Waypoint))
		} else {
			parts = append(parts, fmt.Sprintf("waypoint %d", s.Waypoint))
		}
	}
	return strings.Join(parts, ", ")
}
