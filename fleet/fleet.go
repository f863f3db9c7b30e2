// Package fleet keeps the registry of robots belonging to one fleet. Robots
// are created the first time they can be placed on the navigation graph and
// are kept for the life of the process.
package fleet

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/Tractonomy/free-fleet-ros2/command"
	"github.com/Tractonomy/free-fleet-ros2/navgraph"
	"github.com/Tractonomy/free-fleet-ros2/plan"
)

var ErrUnknownRobot = errors.New("unknown robot")

// FleetState is one telemetry report covering some robots of a fleet.
type FleetState struct {
	Name   string
	Robots []command.State
}

// LaneRequest opens and closes lanes. An empty Fleet applies to every fleet.
type LaneRequest struct {
	Fleet string
	Open  []int
	Close []int
	// Actor is recorded by planners that keep an audit trail.
	Actor string
}

// Planner is the task planner's side of the registry.
type Planner interface {
	// AddRobot registers a newly placed robot. The returned Updater receives
	// every report the robot's command handle produces.
	AddRobot(name string, starts []Start, state command.State) (command.Updater, error)
	OpenLanes(lanes []int)
	CloseLanes(lanes []int)
}

// ClosedLanesPublisher announces the complete set of closed lanes.
type ClosedLanesPublisher interface {
	PublishClosedLanes(fleet string, lanes []int, fingerprint string) error
}

type Config struct {
	Name       string
	Graph      *navgraph.Graph
	Traits     plan.VehicleTraits
	Dispatcher command.Dispatcher
	Planner    Planner
	// Publisher may be nil.
	Publisher  ClosedLanesPublisher
	Timing     command.Timing
	Tolerances command.Tolerances
	DockRule   command.DockRule
	Now        func() time.Time
	LogFunc    command.LogFunc
	// OnUnplaceable is called each time a robot is seen but cannot be placed.
	OnUnplaceable func(robot, hint string)
}

type Fleet struct {
	cfg Config

	mu      sync.Mutex
	robots  map[string]*command.Handle
	order   []string
	closed  navgraph.LaneSet
	unplace map[string]string
}

func New(cfg Config) *Fleet {
	if cfg.LogFunc == nil {
		cfg.LogFunc = log.Printf
	}
	if cfg.Tolerances == (command.Tolerances{}) {
		cfg.Tolerances = command.DefaultTolerances()
	}
	return &Fleet{
		cfg:     cfg,
		robots:  make(map[string]*command.Handle),
		closed:  navgraph.NewLaneSet(),
		unplace: make(map[string]string),
	}
}

func (f *Fleet) Name() string            { return f.cfg.Name }
func (f *Fleet) Graph() *navgraph.Graph { return f.cfg.Graph }

// HandleFleetState creates handles for robots seen for the first time and
// forwards each robot's state to its handle, in report order. Reports for
// other fleets are ignored.
func (f *Fleet) HandleFleetState(fs FleetState) {
	if fs.Name != f.cfg.Name {
		return
	}
	for _, s := range fs.Robots {
		h := f.handleFor(s)
		if h == nil {
			continue
		}
		h.UpdateState(s)
	}
}

func (f *Fleet) handleFor(s command.State) *command.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.robots[s.Name]; ok {
		return h
	}

	loc := s.Location
	starts := ComputeStarts(f.cfg.Graph, loc.Map, loc.Pose, f.cfg.Tolerances)
	if len(starts) == 0 {
		hint := f.cfg.Graph.PlacementHint(loc.Map, loc.Pose.Point())
		f.cfg.LogFunc("fleet: unable to compute a start for robot [%s] using level name [%s] and location [%.2f, %.2f, %.2f]. %s",
			s.Name, loc.Map, loc.Pose.X, loc.Pose.Y, loc.Pose.Yaw, hint)
		f.unplace[s.Name] = hint
		if f.cfg.OnUnplaceable != nil {
			f.cfg.OnUnplaceable(s.Name, hint)
		}
		return nil
	}

	updater, err := f.cfg.Planner.AddRobot(s.Name, starts, s)
	if err != nil {
		f.cfg.LogFunc("fleet: add robot [%s] to fleet [%s]: %v", s.Name, f.cfg.Name, err)
		return nil
	}

	h := command.New(command.Config{
		Fleet:      f.cfg.Name,
		Robot:      s.Name,
		Graph:      f.cfg.Graph,
		Traits:     f.cfg.Traits,
		Dispatcher: f.cfg.Dispatcher,
		Updater:    updater,
		Timing:     f.cfg.Timing,
		Tolerances: f.cfg.Tolerances,
		DockRule:   f.cfg.DockRule,
		Now:        f.cfg.Now,
		LogFunc:    f.cfg.LogFunc,
	})
	f.robots[s.Name] = h
	f.order = append(f.order, s.Name)
	delete(f.unplace, s.Name)
	f.cfg.LogFunc("fleet: added robot [%s] to fleet [%s]", s.Name, f.cfg.Name)
	return h
}

// HandleLaneRequest applies a lane request and returns the lanes it newly
// closed. Every robot is told about the newly closed lanes and the full
// closed set is published.
func (f *Fleet) HandleLaneRequest(req LaneRequest) navgraph.LaneSet {
	if req.Fleet != "" && req.Fleet != f.cfg.Name {
		return nil
	}
	open := f.validLanes(req.Open)
	closing := f.validLanes(req.Close)

	if len(open) > 0 {
		f.cfg.Planner.OpenLanes(open)
	}
	if len(closing) > 0 {
		f.cfg.Planner.CloseLanes(closing)
	}

	f.mu.Lock()
	newly := navgraph.NewLaneSet()
	for _, l := range closing {
		if !f.closed.Has(l) {
			newly.Add(l)
		}
	}
	for _, l := range open {
		f.closed.Remove(l)
	}
	for _, l := range closing {
		f.closed.Add(l)
	}
	closed := f.closed.Sorted()
	handles := f.handlesLocked()
	f.mu.Unlock()

	if len(newly) > 0 {
		for _, h := range handles {
			h.NewlyClosedLanes(newly)
		}
	}
	f.publish(closed)
	return newly
}

// RestoreClosedLanes seeds the closed set without notifying robots, which
// have no plans yet at startup.
func (f *Fleet) RestoreClosedLanes(lanes []int) {
	valid := f.validLanes(lanes)
	if len(valid) == 0 {
		return
	}
	f.cfg.Planner.CloseLanes(valid)
	f.mu.Lock()
	for _, l := range valid {
		f.closed.Add(l)
	}
	closed := f.closed.Sorted()
	f.mu.Unlock()
	f.cfg.LogFunc("fleet: restored %d closed lanes for fleet [%s]", len(valid), f.cfg.Name)
	f.publish(closed)
}

func (f *Fleet) publish(closed []int) {
	if f.cfg.Publisher == nil {
		return
	}
	if err := f.cfg.Publisher.PublishClosedLanes(f.cfg.Name, closed, f.cfg.Graph.Fingerprint()); err != nil {
		f.cfg.LogFunc("fleet: publish closed lanes for fleet [%s]: %v", f.cfg.Name, err)
	}
}

func (f *Fleet) validLanes(lanes []int) []int {
	out := make([]int, 0, len(lanes))
	for _, l := range lanes {
		if !f.cfg.Graph.HasLane(l) {
			f.cfg.LogFunc("fleet: ignoring lane %d, fleet [%s] has %d lanes", l, f.cfg.Name, f.cfg.Graph.LaneCount())
			continue
		}
		out = append(out, l)
	}
	return out
}

func (f *Fleet) handlesLocked() []*command.Handle {
	out := make([]*command.Handle, 0, len(f.order))
	for _, name := range f.order {
		out = append(out, f.robots[name])
	}
	return out
}

// Robot returns the handle of a registered robot.
func (f *Fleet) Robot(name string) (*command.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.robots[name]
	if !ok {
		return nil, fmt.Errorf("robot %q in fleet %s: %w", name, f.cfg.Name, ErrUnknownRobot)
	}
	return h, nil
}

// Robots lists registered robots in the order they were first placed.
func (f *Fleet) Robots() []*command.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlesLocked()
}

func (f *Fleet) ClosedLanes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed.Sorted()
}

// Unplaced maps robots that have been seen but never placed to the most
// recent placement hint.
func (f *Fleet) Unplaced() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.unplace))
	for k, v := range f.unplace {
		out[k] = v
	}
	return out
}

// UnplacedNames returns the keys of Unplaced, sorted.
func (f *Fleet) UnplacedNames() []string {
	m := f.Unplaced()
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
