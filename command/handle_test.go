package command

import (
	"errors"
	"testing"
	"time"

	"github.com/Tractonomy/free-fleet-ros2/navgraph"
	"github.com/Tractonomy/free-fleet-ros2/plan"
)

// --- Fakes ---

type fakeDispatcher struct {
	paths []PathRequest
	modes []ModeRequest
	err   error
}

func (d *fakeDispatcher) SendPath(req PathRequest) error {
	d.paths = append(d.paths, req)
	return d.err
}

func (d *fakeDispatcher) SendMode(req ModeRequest) error {
	d.modes = append(d.modes, req)
	return d.err
}

type routeCall struct {
	mapName string
	traj    plan.Trajectory
}

type fakeParticipant struct{ routes []routeCall }

func (p *fakeParticipant) SetRoute(mapName string, traj plan.Trajectory) {
	p.routes = append(p.routes, routeCall{mapName, traj})
}

type fakeUpdater struct {
	interrupts  int
	socs        []float64
	positions   []PositionUpdate
	participant *fakeParticipant
}

func (u *fakeUpdater) Interrupted()                   { u.interrupts++ }
func (u *fakeUpdater) UpdateBatterySOC(soc float64)   { u.socs = append(u.socs, soc) }
func (u *fakeUpdater) UpdatePosition(p PositionUpdate) { u.positions = append(u.positions, p) }
func (u *fakeUpdater) Participant() Participant {
	if u.participant == nil {
		return nil
	}
	return u.participant
}

func (u *fakeUpdater) lastPosition(t *testing.T) PositionUpdate {
	t.Helper()
	if len(u.positions) == 0 {
		t.Fatal("no position updates")
	}
	return u.positions[len(u.positions)-1]
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// --- Test helpers ---

var testTraits = plan.VehicleTraits{LinearVelocity: 1, AngularVelocity: 1}

// testGraph: 0(0,0) <-> 1(10,0) -> 2(20,0), and 1 <-> 3(10,5) where the
// 1->3 lane docks into "d1".
func testGraph(t *testing.T) *navgraph.Graph {
	t.Helper()
	b := navgraph.NewBuilder()
	b.AddWaypoint("L1", navgraph.Vec2{X: 0, Y: 0})
	b.AddWaypoint("L1", navgraph.Vec2{X: 10, Y: 0})
	b.AddWaypoint("L1", navgraph.Vec2{X: 20, Y: 0})
	b.AddWaypoint("L1", navgraph.Vec2{X: 10, Y: 5})
	b.SetName(3, "dock_bay")
	none := navgraph.LaneAction{}
	b.AddLane(0, 1, none, none)                 // 0
	b.AddLane(1, 0, none, none)                 // 1
	b.AddLane(1, 2, none, none)                 // 2
	b.AddLane(1, 3, navgraph.Dock("d1"), none) // 3
	b.AddLane(3, 1, none, none)                 // 4
	g, err := b.Build()
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g
}

type harness struct {
	h     *Handle
	graph *navgraph.Graph
	disp  *fakeDispatcher
	upd   *fakeUpdater
	clock *fakeClock
	logs  []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	hs := &harness{
		graph: testGraph(t),
		disp:  &fakeDispatcher{},
		upd:   &fakeUpdater{},
		clock: &fakeClock{t: time.Unix(1_000_000, 0)},
	}
	hs.h = New(Config{
		Fleet:      "fleet_a",
		Robot:      "r1",
		Graph:      hs.graph,
		Traits:     testTraits,
		Dispatcher: hs.disp,
		Updater:    hs.upd,
		Now:        hs.clock.Now,
		LogFunc: func(format string, args ...any) {
			hs.logs = append(hs.logs, format)
		},
	})
	return hs
}

func (hs *harness) route(t *testing.T, indices ...int) plan.Plan {
	t.Helper()
	p, err := plan.FromWaypoints(hs.graph, testTraits, hs.clock.Now(), indices)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	return p
}

func state(id uint64, mode Mode, x, y float64, remaining int) State {
	s := State{
		Name:           "r1",
		CommandID:      id,
		Mode:           mode,
		BatteryPercent: 80,
		Location:       Location{Map: "L1", Pose: plan.Pose{X: x, Y: y}},
	}
	for i := 0; i < remaining; i++ {
		s.Path = append(s.Path, Location{Map: "L1", Pose: plan.Pose{X: 20, Y: 0}})
	}
	return s
}

// --- Tests ---

func TestFollowNewPathDispatches(t *testing.T) {
	hs := newHarness(t)
	hs.h.FollowNewPath(hs.route(t, 0, 1, 2), func(int, time.Duration) {}, func() {})

	if len(hs.disp.paths) != 1 {
		t.Fatalf("paths sent = %d, want 1", len(hs.disp.paths))
	}
	req := hs.disp.paths[0]
	if req.CommandID != 1 || req.Robot != "r1" || req.Fleet != "fleet_a" {
		t.Errorf("request = %+v", req)
	}
	if len(req.Path) != 3 || req.Path[2].Map != "L1" || req.Path[2].Pose.X != 20 {
		t.Errorf("path = %+v", req.Path)
	}
	if len(req.Nodes) != 3 || req.Nodes[1].WaypointIndex != 1 {
		t.Errorf("nodes = %+v", req.Nodes)
	}
}

func TestCommandIDsIncrease(t *testing.T) {
	hs := newHarness(t)
	hs.h.FollowNewPath(hs.route(t, 0, 1), nil, func() {})
	if err := hs.h.Dock("d1", func() {}); err != nil {
		t.Fatal(err)
	}
	hs.h.FollowNewPath(hs.route(t, 1, 2), nil, func() {})
	if hs.disp.paths[0].CommandID != 1 || hs.disp.modes[0].CommandID != 2 || hs.disp.paths[1].CommandID != 3 {
		t.Errorf("ids = %d, %d, %d", hs.disp.paths[0].CommandID, hs.disp.modes[0].CommandID, hs.disp.paths[1].CommandID)
	}
}

func TestPathResendThrottled(t *testing.T) {
	hs := newHarness(t)
	hs.h.FollowNewPath(hs.route(t, 0, 1, 2), nil, func() {})

	steps := []struct {
		advance time.Duration
		sends   int
	}{
		{100 * time.Millisecond, 1},
		{150 * time.Millisecond, 2}, // 250ms since first send
		{50 * time.Millisecond, 2},  // 50ms since resend
		{151 * time.Millisecond, 3},
	}
	for i, s := range steps {
		hs.clock.Advance(s.advance)
		hs.h.UpdateState(state(0, ModeIdle, 0, 0, 0))
		if got := len(hs.disp.paths); got != s.sends {
			t.Fatalf("step %d: sends = %d, want %d", i, got, s.sends)
		}
	}
	for _, p := range hs.disp.paths {
		if p.CommandID != 1 {
			t.Errorf("resent id %d, want 1", p.CommandID)
		}
	}
	// Unacknowledged telemetry still yields a position estimate.
	if pos := hs.upd.lastPosition(t); pos.Kind != PositionAtWaypoint || pos.Waypoint != 0 {
		t.Errorf("position = %+v, want at waypoint 0", pos)
	}
}

func TestPathTravelingEstimate(t *testing.T) {
	hs := newHarness(t)
	type est struct {
		index     int
		remaining time.Duration
	}
	var estimates []est
	hs.h.FollowNewPath(hs.route(t, 0, 1, 2), func(i int, d time.Duration) {
		estimates = append(estimates, est{i, d})
	}, func() {})

	for n := 0; n < 2; n++ {
		hs.h.UpdateState(state(1, ModeMoving, 15, 0, 1))
	}

	if len(estimates) != 2 || estimates[0] != estimates[1] {
		t.Fatalf("estimates = %+v, want two identical", estimates)
	}
	if estimates[0].index != 2 || estimates[0].remaining != 5*time.Second {
		t.Errorf("estimate = %+v, want index 2 in 5s", estimates[0])
	}
	if len(hs.upd.positions) != 2 {
		t.Fatalf("positions = %d, want 2", len(hs.upd.positions))
	}
	for _, pos := range hs.upd.positions {
		if pos.Kind != PositionOnLanes || len(pos.Lanes) != 1 || pos.Lanes[0] != 2 {
			t.Errorf("position = %+v, want on lane 2", pos)
		}
	}
	snap := hs.h.Snapshot()
	if snap.TargetPlanIndex != 2 || snap.LastKnownWaypoint != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestPathFinishInvokesCompletionOnce(t *testing.T) {
	hs := newHarness(t)
	done := 0
	hs.h.FollowNewPath(hs.route(t, 0, 1, 2), nil, func() { done++ })

	hs.h.UpdateState(state(1, ModeIdle, 20, 0, 0))
	hs.h.UpdateState(state(1, ModeIdle, 20, 0, 0))

	if done != 1 {
		t.Fatalf("completion calls = %d, want 1", done)
	}
	pos := hs.upd.positions[0]
	if pos.Kind != PositionAtWaypoint || pos.Waypoint != 2 {
		t.Errorf("final position = %+v, want at waypoint 2", pos)
	}
	snap := hs.h.Snapshot()
	if snap.Following || snap.LastKnownWaypoint != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestEmptyPlanCompletes(t *testing.T) {
	hs := newHarness(t)
	done := 0
	hs.h.FollowNewPath(nil, nil, func() { done++ })
	if len(hs.disp.paths) != 1 || len(hs.disp.paths[0].Path) != 0 {
		t.Fatalf("paths = %+v", hs.disp.paths)
	}
	hs.h.UpdateState(state(1, ModeIdle, 0, 0, 0))
	if done != 1 {
		t.Errorf("completion calls = %d, want 1", done)
	}
}

func TestSupersededPathNeverCompletes(t *testing.T) {
	hs := newHarness(t)
	first, second := 0, 0
	hs.h.FollowNewPath(hs.route(t, 0, 1), nil, func() { first++ })
	hs.h.FollowNewPath(hs.route(t, 0, 1, 2), nil, func() { second++ })

	// A late ack for the first command is only an unacknowledged report.
	hs.h.UpdateState(state(1, ModeIdle, 10, 0, 0))
	if first != 0 || second != 0 {
		t.Fatalf("after stale ack: first=%d second=%d", first, second)
	}
	hs.h.UpdateState(state(2, ModeIdle, 20, 0, 0))
	if first != 0 || second != 1 {
		t.Errorf("first=%d second=%d, want 0 and 1", first, second)
	}
}

func TestDockSupersedesPath(t *testing.T) {
	hs := newHarness(t)
	pathDone := 0
	hs.h.FollowNewPath(hs.route(t, 0, 1), nil, func() { pathDone++ })
	if err := hs.h.Dock("d1", func() {}); err != nil {
		t.Fatal(err)
	}
	hs.h.UpdateState(state(1, ModeIdle, 10, 0, 0))
	if pathDone != 0 {
		t.Errorf("superseded path completion called %d times", pathDone)
	}
}

func TestAdapterErrorInterruptsOnce(t *testing.T) {
	hs := newHarness(t)
	done := 0
	hs.h.FollowNewPath(hs.route(t, 0, 1, 2), nil, func() { done++ })

	for i := 0; i < 3; i++ {
		hs.h.UpdateState(state(1, ModeAdapterError, 5, 0, 2))
	}
	if hs.upd.interrupts != 1 {
		t.Errorf("interrupts = %d, want 1", hs.upd.interrupts)
	}
	if done != 0 {
		t.Errorf("completion called on interruption")
	}
	if !hs.h.Snapshot().Interrupted {
		t.Error("snapshot should be interrupted")
	}

	// A fresh path re-arms the latch.
	hs.h.FollowNewPath(hs.route(t, 0, 1), nil, func() {})
	hs.h.UpdateState(state(2, ModeAdapterError, 5, 0, 1))
	if hs.upd.interrupts != 2 {
		t.Errorf("interrupts after new path = %d, want 2", hs.upd.interrupts)
	}
}

func TestDockUnknownName(t *testing.T) {
	hs := newHarness(t)
	pathDone := 0
	hs.h.FollowNewPath(hs.route(t, 0, 1), nil, func() { pathDone++ })

	err := hs.h.Dock("nowhere", func() {})
	if !errors.Is(err, ErrUnknownDock) {
		t.Fatalf("err = %v, want ErrUnknownDock", err)
	}
	if len(hs.disp.modes) != 0 {
		t.Error("mode request sent for unknown dock")
	}
	// The outstanding path is untouched.
	hs.h.UpdateState(state(1, ModeIdle, 10, 0, 0))
	if pathDone != 1 {
		t.Errorf("path completion = %d, want 1", pathDone)
	}
}

func TestDockRule(t *testing.T) {
	b := navgraph.NewBuilder()
	b.AddWaypoint("L1", navgraph.Vec2{X: 0, Y: 0})
	b.AddWaypoint("L1", navgraph.Vec2{X: 5, Y: 0})
	b.AddWaypoint("L1", navgraph.Vec2{X: 0, Y: 5})
	none := navgraph.LaneAction{}
	b.AddLane(1, 0, navgraph.Dock("shared"), none)
	b.AddLane(2, 0, navgraph.Dock("shared"), none)
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		rule    DockRule
		wantErr error
	}{
		{DockFirstMatch, nil},
		{DockUnique, ErrAmbiguousDock},
	} {
		disp := &fakeDispatcher{}
		h := New(Config{
			Fleet: "f", Robot: "r", Graph: g, Traits: testTraits,
			Dispatcher: disp, Updater: &fakeUpdater{}, DockRule: tt.rule,
			LogFunc: func(string, ...any) {},
		})
		err := h.Dock("shared", func() {})
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("rule %d: err = %v, want %v", tt.rule, err, tt.wantErr)
		}
		if tt.wantErr == nil && (len(disp.modes) != 1 || h.dockTarget != 1) {
			t.Errorf("rule %d: modes=%d target=%d, want first lane entry 1", tt.rule, len(disp.modes), h.dockTarget)
		}
	}

	if r, err := ParseDockRule("unique"); err != nil || r != DockUnique {
		t.Errorf("ParseDockRule(unique) = %v, %v", r, err)
	}
	if _, err := ParseDockRule("last"); err == nil {
		t.Error("ParseDockRule(last) should fail")
	}
}

func TestDockLifecycle(t *testing.T) {
	hs := newHarness(t)
	hs.upd.participant = &fakeParticipant{}
	done := 0
	if err := hs.h.Dock("d1", func() { done++ }); err != nil {
		t.Fatalf("dock: %v", err)
	}

	if len(hs.disp.modes) != 1 {
		t.Fatalf("modes sent = %d", len(hs.disp.modes))
	}
	req := hs.disp.modes[0]
	if req.Mode != ModeDocking || len(req.Parameters) != 1 ||
		req.Parameters[0].Name != "docking" || req.Parameters[0].Value != "d1" {
		t.Errorf("mode request = %+v", req)
	}

	docking := func() State {
		s := state(1, ModeDocking, 10, 1, 0)
		s.Location.Time = hs.clock.Now()
		s.Path = []Location{{Map: "L1", Pose: plan.Pose{X: 10, Y: 5}}}
		return s
	}

	hs.clock.Advance(500 * time.Millisecond)
	hs.h.UpdateState(docking())
	if n := len(hs.upd.participant.routes); n != 0 {
		t.Fatalf("routes after 0.5s = %d, want 0", n)
	}
	hs.clock.Advance(time.Second)
	hs.h.UpdateState(docking())
	hs.clock.Advance(500 * time.Millisecond)
	hs.h.UpdateState(docking())
	routes := hs.upd.participant.routes
	if len(routes) != 1 {
		t.Fatalf("routes = %d, want 1", len(routes))
	}
	if routes[0].mapName != "L1" || len(routes[0].traj) != 2 {
		t.Errorf("route = %+v", routes[0])
	}

	hs.h.UpdateState(state(1, ModeIdle, 10, 5, 0))
	hs.h.UpdateState(state(1, ModeIdle, 10, 5, 0))
	if done != 1 {
		t.Fatalf("dock completion = %d, want 1", done)
	}
	var atDock bool
	for _, p := range hs.upd.positions {
		if p.Kind == PositionAtWaypoint && p.Waypoint == 1 {
			atDock = true
		}
	}
	if !atDock {
		t.Errorf("positions = %+v, want one at dock entry waypoint 1", hs.upd.positions)
	}
	if hs.h.Snapshot().Docking {
		t.Error("still docking after completion")
	}
}

func TestDockResendAndNoParticipant(t *testing.T) {
	hs := newHarness(t)
	if err := hs.h.Dock("d1", func() {}); err != nil {
		t.Fatal(err)
	}
	hs.clock.Advance(201 * time.Millisecond)
	hs.h.UpdateState(state(0, ModeIdle, 10, 0, 0))
	if len(hs.disp.modes) != 2 || hs.disp.modes[1].CommandID != 1 {
		t.Fatalf("modes = %+v, want a resend of id 1", hs.disp.modes)
	}
	// Unacknowledged dock telemetry produces no position estimate.
	if len(hs.upd.positions) != 0 {
		t.Errorf("positions = %+v, want none", hs.upd.positions)
	}

	hs.clock.Advance(2 * time.Second)
	s := state(1, ModeDocking, 10, 1, 0)
	s.Path = []Location{{Map: "L1", Pose: plan.Pose{X: 10, Y: 5}}}
	hs.h.UpdateState(s) // no participant: silently skipped
	hs.upd.participant = &fakeParticipant{}
	hs.h.UpdateState(s)
	if len(hs.upd.participant.routes) != 1 {
		t.Errorf("routes = %d, want 1 once a participant exists", len(hs.upd.participant.routes))
	}
}

func TestBatterySOC(t *testing.T) {
	hs := newHarness(t)
	s := state(0, ModeIdle, 0, 0, 0)
	s.BatteryPercent = 150
	hs.h.UpdateState(s)
	s.BatteryPercent = -1
	hs.h.UpdateState(s)
	if len(hs.upd.socs) != 0 {
		t.Fatalf("socs = %v, want none", hs.upd.socs)
	}
	if len(hs.logs) != 2 {
		t.Errorf("logs = %d, want 2", len(hs.logs))
	}
	s.BatteryPercent = 50
	hs.h.UpdateState(s)
	if len(hs.upd.socs) != 1 || hs.upd.socs[0] != 0.5 {
		t.Errorf("socs = %v, want [0.5]", hs.upd.socs)
	}
	// The rest of the report is still processed.
	if len(hs.upd.positions) != 3 {
		t.Errorf("positions = %d, want 3", len(hs.upd.positions))
	}
}

func TestIdleEstimateOffGraph(t *testing.T) {
	hs := newHarness(t)
	hs.h.UpdateState(state(0, ModeIdle, 5, 0.5, 0))
	if pos := hs.upd.lastPosition(t); pos.Kind != PositionOnLanes || pos.Lanes[0] != 0 {
		t.Errorf("position = %+v, want on lane 0", pos)
	}
	hs.h.UpdateState(state(0, ModeIdle, 50, 50, 0))
	if pos := hs.upd.lastPosition(t); pos.Kind != PositionOffGraph || pos.Map != "L1" {
		t.Errorf("position = %+v, want off graph on L1", pos)
	}
}

func TestCallbacksMayReenter(t *testing.T) {
	hs := newHarness(t)
	next := hs.route(t, 1, 0)
	hs.h.FollowNewPath(hs.route(t, 0, 1), nil, func() {
		hs.h.FollowNewPath(next, nil, func() {})
	})
	hs.h.UpdateState(state(1, ModeIdle, 10, 0, 0))
	if len(hs.disp.paths) != 2 || hs.disp.paths[1].CommandID != 2 {
		t.Fatalf("paths = %+v, want the follow-up path dispatched from the callback", hs.disp.paths)
	}
	if !hs.h.Snapshot().Following {
		t.Error("follow-up path should be outstanding")
	}
}
