package navgraph

import (
	"math"
	"strings"
	"testing"
)

// testGraph: A(0,0) <-> B(10,0) <-> C(10,10) on L1 with a dock lane B->C,
// plus a lone waypoint on L2.
func testGraph(t *testing.T) *Graph {
	t.Helper()
	b := NewBuilder()
	a := b.AddWaypoint("L1", Vec2{0, 0})
	bb := b.AddWaypoint("L1", Vec2{10, 0})
	c := b.AddWaypoint("L1", Vec2{10, 10})
	b.AddWaypoint("L2", Vec2{0, 0})
	b.SetName(a, "A")
	b.SetName(c, "charger")
	b.AddLane(a, bb, LaneAction{}, LaneAction{})
	b.AddLane(bb, a, LaneAction{}, LaneAction{})
	b.AddLane(bb, c, Dock("dock_1"), LaneAction{})
	b.AddLane(c, bb, LaneAction{}, LaneAction{})
	b.AddLane(a, c, Dock("dock_1"), LaneAction{})
	g, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return g
}

func TestLaneFrom(t *testing.T) {
	g := testGraph(t)
	l, ok := g.LaneFrom(1, 0)
	if !ok || l.Index != 1 {
		t.Fatalf("LaneFrom(1,0) = %+v, %v; want lane 1", l, ok)
	}
	if _, ok := g.LaneFrom(0, 3); ok {
		t.Error("LaneFrom(0,3) should not exist")
	}
}

func TestFindDockFirstMatch(t *testing.T) {
	g := testGraph(t)
	l, ok := g.FindDock("dock_1")
	if !ok {
		t.Fatal("dock_1 not found")
	}
	if l.Index != 2 || l.Entry != 1 {
		t.Errorf("FindDock = lane %d entry %d, want lane 2 entry 1", l.Index, l.Entry)
	}
	if _, ok := g.FindDock("nope"); ok {
		t.Error("unknown dock should not be found")
	}
}

func TestFindWaypointAndKeys(t *testing.T) {
	g := testGraph(t)
	w, ok := g.FindWaypoint("charger")
	if !ok || w.Index != 2 {
		t.Fatalf("FindWaypoint(charger) = %+v, %v", w, ok)
	}
	keys := g.Keys()
	if len(keys) != 2 || keys[0] != "A" || keys[1] != "charger" {
		t.Errorf("Keys = %v", keys)
	}
	if got := g.Waypoint(1).Label(); got != "#1" {
		t.Errorf("unnamed label = %q, want #1", got)
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	b := NewBuilder()
	b.AddWaypoint("L1", Vec2{})
	b.AddWaypoint("L1", Vec2{1, 0})
	b.SetName(0, "x")
	b.SetName(1, "x")
	if _, err := b.Build(); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestDistanceFromPrefersLane(t *testing.T) {
	g := testGraph(t)
	d, ok := g.DistanceFrom("L1", Vec2{5, 0.5})
	if !ok {
		t.Fatal("expected a nearest element")
	}
	if d.Kind != ElementLane {
		t.Fatalf("kind = %v, want lane", d.Kind)
	}
	if math.Abs(d.Distance-0.5) > 1e-9 {
		t.Errorf("distance = %v, want 0.5", d.Distance)
	}
	if !strings.Contains(g.Hint(d), "connects waypoint [A] to [#1]") {
		t.Errorf("hint = %q", g.Hint(d))
	}
}

func TestDistanceFromWaypoint(t *testing.T) {
	g := testGraph(t)
	// Beyond the end of every lane, so only waypoints qualify.
	d, ok := g.DistanceFrom("L1", Vec2{-3, -4})
	if !ok || d.Kind != ElementWaypoint || d.Index != 0 {
		t.Fatalf("got %+v, %v; want waypoint 0", d, ok)
	}
	if math.Abs(d.Distance-5) > 1e-9 {
		t.Errorf("distance = %v, want 5", d.Distance)
	}
	if !strings.Contains(g.Hint(d), "closest waypoint is [A]") {
		t.Errorf("hint = %q", g.Hint(d))
	}
}

func TestDistanceFromIgnoresOtherMaps(t *testing.T) {
	g := testGraph(t)
	d, ok := g.DistanceFrom("L2", Vec2{5, 0})
	if !ok || d.Index != 3 {
		t.Fatalf("got %+v, %v; want waypoint 3 on L2", d, ok)
	}
	if _, ok := g.DistanceFrom("L9", Vec2{}); ok {
		t.Error("unknown map should have no nearest element")
	}
	if hint := g.PlacementHint("L9", Vec2{}); !strings.Contains(hint, "no waypoints") {
		t.Errorf("hint = %q", hint)
	}
}

func TestDegenerateLaneSkipped(t *testing.T) {
	b := NewBuilder()
	a := b.AddWaypoint("L1", Vec2{1, 1})
	c := b.AddWaypoint("L1", Vec2{1, 1})
	b.AddLane(a, c, LaneAction{}, LaneAction{})
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g.NearestLane("L1", Vec2{1, 1}); ok {
		t.Error("zero-length lane should be skipped")
	}
}

func TestFingerprintStable(t *testing.T) {
	g1, g2 := testGraph(t), testGraph(t)
	if g1.Fingerprint() == "" || g1.Fingerprint() != g2.Fingerprint() {
		t.Errorf("fingerprints %q vs %q", g1.Fingerprint(), g2.Fingerprint())
	}
	b := NewBuilder()
	b.AddWaypoint("L1", Vec2{})
	g3, _ := b.Build()
	if g3.Fingerprint() == g1.Fingerprint() {
		t.Error("different graphs share a fingerprint")
	}
}

func TestLaneSetSorted(t *testing.T) {
	s := NewLaneSet(5, 1, 3)
	s.Add(2)
	s.Remove(5)
	got := s.Sorted()
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("Sorted = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Sorted = %v, want %v", got, want)
		}
	}
}
