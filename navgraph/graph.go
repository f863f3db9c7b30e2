// Package navgraph holds the read-only navigation graph a fleet drives on:
// waypoints on named maps joined by directed lanes.
package navgraph

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"github.com/zeebo/blake3"
)

// Vec2 is a point or direction in a map frame, in metres.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Sub(o Vec2) Vec2           { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Add(o Vec2) Vec2           { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Scale(s float64) Vec2      { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Dot(o Vec2) float64        { return v.X*o.X + v.Y*o.Y }
func (v Vec2) Norm() float64             { return math.Hypot(v.X, v.Y) }
func (v Vec2) DistanceTo(o Vec2) float64 { return v.Sub(o).Norm() }

type Waypoint struct {
	Index    int    `json:"index"`
	Map      string `json:"map"`
	Position Vec2   `json:"position"`
	Name     string `json:"name,omitempty"`
}

// Label returns the waypoint name, or "#<index>" when it has none.
func (w Waypoint) Label() string {
	if w.Name != "" {
		return w.Name
	}
	return fmt.Sprintf("#%d", w.Index)
}

type Lane struct {
	Index       int        `json:"index"`
	Entry       int        `json:"entry"`
	Exit        int        `json:"exit"`
	EntryAction LaneAction `json:"-"`
	ExitAction  LaneAction `json:"-"`
}

// Graph is immutable once built and safe for concurrent readers.
type Graph struct {
	waypoints   []Waypoint
	lanes       []Lane
	laneByPair  map[[2]int]int
	byName      map[string]int
	fingerprint string
}

func (g *Graph) WaypointCount() int { return len(g.waypoints) }
func (g *Graph) LaneCount() int     { return len(g.lanes) }

// Waypoint returns the waypoint at index i. It panics when i is out of range,
// like a slice index.
func (g *Graph) Waypoint(i int) Waypoint { return g.waypoints[i] }

// Lane returns the lane at index i. It panics when i is out of range.
func (g *Graph) Lane(i int) Lane { return g.lanes[i] }

func (g *Graph) HasWaypoint(i int) bool { return i >= 0 && i < len(g.waypoints) }
func (g *Graph) HasLane(i int) bool     { return i >= 0 && i < len(g.lanes) }

// Waypoints returns a copy of all waypoints in index order.
func (g *Graph) Waypoints() []Waypoint {
	out := make([]Waypoint, len(g.waypoints))
	copy(out, g.waypoints)
	return out
}

// Lanes returns a copy of all lanes in index order.
func (g *Graph) Lanes() []Lane {
	out := make([]Lane, len(g.lanes))
	copy(out, g.lanes)
	return out
}

// LaneFrom returns the lane running from entry to exit, if one exists.
func (g *Graph) LaneFrom(entry, exit int) (Lane, bool) {
	idx, ok := g.laneByPair[[2]int{entry, exit}]
	if !ok {
		return Lane{}, false
	}
	return g.lanes[idx], true
}

// FindWaypoint looks a waypoint up by name.
func (g *Graph) FindWaypoint(name string) (Waypoint, bool) {
	idx, ok := g.byName[name]
	if !ok {
		return Waypoint{}, false
	}
	return g.waypoints[idx], true
}

// Keys returns the sorted names of all named waypoints.
func (g *Graph) Keys() []string {
	keys := make([]string, 0, len(g.byName))
	for k := range g.byName {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FindDock returns the first lane, in index order, whose entry action docks
// into the named dock.
func (g *Graph) FindDock(name string) (Lane, bool) {
	for _, l := range g.lanes {
		if l.EntryAction.IsDock(name) {
			return l, true
		}
	}
	return Lane{}, false
}

// DockLanes returns every lane whose entry action docks into the named dock,
// in index order.
func (g *Graph) DockLanes(name string) []Lane {
	var out []Lane
	for _, l := range g.lanes {
		if l.EntryAction.IsDock(name) {
			out = append(out, l)
		}
	}
	return out
}

// LaneLength returns the straight-line length of lane i.
func (g *Graph) LaneLength(i int) float64 {
	l := g.lanes[i]
	return g.waypoints[l.Exit].Position.DistanceTo(g.waypoints[l.Entry].Position)
}

// Fingerprint is a blake3 digest over the graph's waypoints and lanes. Two
// graphs with the same fingerprint index waypoints and lanes identically.
func (g *Graph) Fingerprint() string { return g.fingerprint }

// Builder assembles a Graph. It is not safe for concurrent use.
type Builder struct {
	g   *Graph
	err error
}

func NewBuilder() *Builder {
	return &Builder{g: &Graph{
		laneByPair: make(map[[2]int]int),
		byName:     make(map[string]int),
	}}
}

// AddWaypoint appends a waypoint and returns its index.
func (b *Builder) AddWaypoint(mapName string, pos Vec2) int {
	idx := len(b.g.waypoints)
	b.g.waypoints = append(b.g.waypoints, Waypoint{Index: idx, Map: mapName, Position: pos})
	return idx
}

// SetName names waypoint i. Names must be unique.
func (b *Builder) SetName(i int, name string) {
	if b.err != nil {
		return
	}
	if i < 0 || i >= len(b.g.waypoints) {
		b.err = fmt.Errorf("name %q: waypoint %d out of range", name, i)
		return
	}
	if prev, dup := b.g.byName[name]; dup && prev != i {
		b.err = fmt.Errorf("name %q already used by waypoint %d", name, prev)
		return
	}
	b.g.waypoints[i].Name = name
	b.g.byName[name] = i
}

// AddLane appends a directed lane and returns its index. Duplicate lanes
// between the same pair keep the first for LaneFrom lookups.
func (b *Builder) AddLane(entry, exit int, entryAction, exitAction LaneAction) int {
	if b.err != nil {
		return -1
	}
	n := len(b.g.waypoints)
	if entry < 0 || entry >= n || exit < 0 || exit >= n {
		b.err = fmt.Errorf("lane %d -> %d: waypoint out of range", entry, exit)
		return -1
	}
	idx := len(b.g.lanes)
	b.g.lanes = append(b.g.lanes, Lane{
		Index:       idx,
		Entry:       entry,
		Exit:        exit,
		EntryAction: entryAction,
		ExitAction:  exitAction,
	})
	key := [2]int{entry, exit}
	if _, ok := b.g.laneByPair[key]; !ok {
		b.g.laneByPair[key] = idx
	}
	return idx
}

// Build finalises the graph. The builder must not be used afterwards.
func (b *Builder) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	g := b.g
	b.g = nil
	g.fingerprint = fingerprint(g)
	return g, nil
}

func fingerprint(g *Graph) string {
	h := blake3.New()
	var buf [8]byte
	putF := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	}
	putI := func(i int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(i))
		h.Write(buf[:])
	}
	putS := func(s string) {
		putI(len(s))
		h.Write([]byte(s))
	}
	putI(len(g.waypoints))
	for _, w := range g.waypoints {
		putS(w.Map)
		putF(w.Position.X)
		putF(w.Position.Y)
		putS(w.Name)
	}
	putI(len(g.lanes))
	for _, l := range g.lanes {
		putI(l.Entry)
		putI(l.Exit)
		putS(l.EntryAction.String())
		putS(l.ExitAction.String())
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// LaneSet is a set of lane indices.
type LaneSet map[int]struct{}

func NewLaneSet(lanes ...int) LaneSet {
	s := make(LaneSet, len(lanes))
	for _, l := range lanes {
		s[l] = struct{}{}
	}
	return s
}

func (s LaneSet) Has(lane int) bool {
	_, ok := s[lane]
	return ok
}

func (s LaneSet) Add(lane int)    { s[lane] = struct{}{} }
func (s LaneSet) Remove(lane int) { delete(s, lane) }

// Sorted returns the members in ascending order.
func (s LaneSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}
