package engine

import (
	"sync"

	"github.com/Tractonomy/free-fleet-ros2/command"
	"github.com/Tractonomy/free-fleet-ros2/fleet"
	"github.com/Tractonomy/free-fleet-ros2/navgraph"
	"github.com/Tractonomy/free-fleet-ros2/plan"
)

// planner implements fleet.Planner. The task planner itself runs outside
// this process, so every report is turned into an event on the bus.
type planner struct {
	e *Engine

	mu     sync.Mutex
	closed navgraph.LaneSet
}

func newPlanner(e *Engine) *planner {
	return &planner{e: e, closed: navgraph.NewLaneSet()}
}

func (p *planner) AddRobot(name string, starts []fleet.Start, state command.State) (command.Updater, error) {
	p.e.Events.Emit(Event{Type: EventRobotAdded, Payload: RobotAddedEvent{
		Robot:  name,
		Model:  state.Model,
		Starts: starts,
	}})
	u := &robotUpdater{e: p.e, robot: name}
	if p.e.cfg.Fleet.Schedule {
		u.participant = &participant{e: p.e, robot: name}
	}
	return u, nil
}

func (p *planner) OpenLanes(lanes []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range lanes {
		p.closed.Remove(l)
	}
}

func (p *planner) CloseLanes(lanes []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range lanes {
		p.closed.Add(l)
	}
}

// blocked returns the first closed lane among lanes, or -1.
func (p *planner) blocked(lanes []int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range lanes {
		if p.closed.Has(l) {
			return l
		}
	}
	return -1
}

// robotUpdater bridges a command handle's planner reports to the EventBus.
type robotUpdater struct {
	e           *Engine
	robot       string
	participant *participant
}

func (u *robotUpdater) Interrupted() {
	u.e.Events.Emit(Event{Type: EventRobotInterrupted, Payload: RobotInterruptedEvent{
		Robot:     u.robot,
		CommandID: u.e.commandID(u.robot),
	}})
}

func (u *robotUpdater) UpdateBatterySOC(soc float64) {
	u.e.Events.Emit(Event{Type: EventRobotBattery, Payload: RobotBatteryEvent{Robot: u.robot, SOC: soc}})
}

func (u *robotUpdater) UpdatePosition(pu command.PositionUpdate) {
	u.e.Events.Emit(Event{Type: EventRobotPosition, Payload: RobotPositionEvent{Robot: u.robot, Update: pu}})
}

func (u *robotUpdater) Participant() command.Participant {
	if u.participant == nil {
		return nil
	}
	return u.participant
}

// participant forwards docking routes to the bus.
type participant struct {
	e     *Engine
	robot string
}

func (p *participant) SetRoute(mapName string, traj plan.Trajectory) {
	p.e.Events.Emit(Event{Type: EventRobotRoute, Payload: RobotRouteEvent{
		Robot:      p.robot,
		Map:        mapName,
		Trajectory: traj,
	}})
}
