package navgraph

import (
	"fmt"
	"math"
)

const minLaneLength = 1e-8

type ElementKind int

const (
	ElementWaypoint ElementKind = iota
	ElementLane
)

// Distance describes the graph element nearest to a point.
type Distance struct {
	Kind     ElementKind
	Index    int
	Distance float64
}

// NearestWaypoint returns the waypoint on mapName closest to p.
func (g *Graph) NearestWaypoint(mapName string, p Vec2) (Distance, bool) {
	best := Distance{Kind: ElementWaypoint, Index: -1, Distance: math.Inf(1)}
	for _, w := range g.waypoints {
		if w.Map != mapName {
			continue
		}
		if d := w.Position.DistanceTo(p); d < best.Distance {
			best.Index = w.Index
			best.Distance = d
		}
	}
	return best, best.Index >= 0
}

// NearestLane returns the lane on mapName closest to p, considering only
// lanes onto whose segment p projects. Lanes shorter than 1e-8 m are skipped.
// A lane is on a map when its entry waypoint is.
func (g *Graph) NearestLane(mapName string, p Vec2) (Distance, bool) {
	best := Distance{Kind: ElementLane, Index: -1, Distance: math.Inf(1)}
	for _, l := range g.lanes {
		if d, ok := g.DistanceToLane(l.Index, mapName, p); ok && d < best.Distance {
			best.Index = l.Index
			best.Distance = d
		}
	}
	return best, best.Index >= 0
}

// DistanceToLane returns the perpendicular distance from p to lane i, or
// false when the lane is on another map, degenerate, or p projects outside it.
func (g *Graph) DistanceToLane(i int, mapName string, p Vec2) (float64, bool) {
	l := g.lanes[i]
	p0 := g.waypoints[l.Entry]
	if p0.Map != mapName {
		return 0, false
	}
	p1 := g.waypoints[l.Exit].Position
	dir := p1.Sub(p0.Position)
	length := dir.Norm()
	if length < minLaneLength {
		return 0, false
	}
	dp := p.Sub(p0.Position)
	u := dp.Dot(dir) / length
	if u < 0 || u > length {
		return 0, false
	}
	return dp.Sub(dir.Scale(u / length)).Norm(), true
}

// DistanceFrom returns the nearest waypoint or lane on mapName. It reports
// false when the map has no waypoints.
func (g *Graph) DistanceFrom(mapName string, p Vec2) (Distance, bool) {
	wp, ok := g.NearestWaypoint(mapName, p)
	if !ok {
		return Distance{}, false
	}
	if lane, ok := g.NearestLane(mapName, p); ok && lane.Distance < wp.Distance {
		return lane, true
	}
	return wp, true
}

// Hint renders a human-readable description of d for operator logs.
func (g *Graph) Hint(d Distance) string {
	switch d.Kind {
	case ElementLane:
		l := g.lanes[d.Index]
		return fmt.Sprintf("The closest lane is %d which connects waypoint [%s] to [%s] and is a distance of [%.2fm] from the robot.",
			l.Index, g.waypoints[l.Entry].Label(), g.waypoints[l.Exit].Label(), d.Distance)
	default:
		return fmt.Sprintf("The closest waypoint is [%s] which is a distance of [%.2fm] from the robot.",
			g.waypoints[d.Index].Label(), d.Distance)
	}
}

// PlacementHint explains why a robot at p on mapName could not be placed.
func (g *Graph) PlacementHint(mapName string, p Vec2) string {
	d, ok := g.DistanceFrom(mapName, p)
	if !ok {
		return fmt.Sprintf("There are no waypoints on the robot's map [%s].", mapName)
	}
	return g.Hint(d)
}
