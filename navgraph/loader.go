package navgraph

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type graphFile struct {
	BuildingName string    `yaml:"building_name"`
	Levels       yaml.Node `yaml:"levels"`
}

type levelFile struct {
	Vertices [][]any `yaml:"vertices"`
	Lanes    [][]any `yaml:"lanes"`
}

// LoadFile reads a building navigation graph from YAML. Levels become maps,
// taken in document order; vertices and lanes are indexed in that order.
//
//	levels:
//	  L1:
//	    vertices:
//	      - [0.0, 0.0, {name: charger_1}]
//	    lanes:
//	      - [0, 1, {bidirectional: true, dock_name: charger_1}]
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read nav graph: %w", err)
	}
	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("nav graph %s: %w", path, err)
	}
	return g, nil
}

// Parse builds a Graph from navigation graph YAML.
func Parse(data []byte) (*Graph, error) {
	var f graphFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if f.Levels.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("missing levels mapping")
	}

	b := NewBuilder()
	for i := 0; i+1 < len(f.Levels.Content); i += 2 {
		mapName := f.Levels.Content[i].Value
		var lvl levelFile
		if err := f.Levels.Content[i+1].Decode(&lvl); err != nil {
			return nil, fmt.Errorf("level %s: %w", mapName, err)
		}
		if err := addLevel(b, mapName, lvl); err != nil {
			return nil, fmt.Errorf("level %s: %w", mapName, err)
		}
	}
	return b.Build()
}

func addLevel(b *Builder, mapName string, lvl levelFile) error {
	offset := len(b.g.waypoints)
	for i, v := range lvl.Vertices {
		if len(v) < 2 {
			return fmt.Errorf("vertex %d: want [x, y, ...]", i)
		}
		x, okX := toFloat(v[0])
		y, okY := toFloat(v[1])
		if !okX || !okY {
			return fmt.Errorf("vertex %d: non-numeric coordinates", i)
		}
		idx := b.AddWaypoint(mapName, Vec2{X: x, Y: y})
		if len(v) > 2 {
			switch opt := v[2].(type) {
			case string:
				if opt != "" {
					b.SetName(idx, opt)
				}
			case map[string]any:
				if name, _ := opt["name"].(string); name != "" {
					b.SetName(idx, name)
				}
			}
		}
	}

	count := len(lvl.Vertices)
	for i, l := range lvl.Lanes {
		if len(l) < 2 {
			return fmt.Errorf("lane %d: want [entry, exit, ...]", i)
		}
		entry, okE := toInt(l[0])
		exit, okX := toInt(l[1])
		if !okE || !okX || entry < 0 || entry >= count || exit < 0 || exit >= count {
			return fmt.Errorf("lane %d: bad vertex indices", i)
		}
		var opts map[string]any
		if len(l) > 2 {
			opts, _ = l[2].(map[string]any)
		}
		bidirectional, _ := opts["bidirectional"].(bool)
		dock, _ := opts["dock_name"].(string)
		door, _ := opts["door_name"].(string)
		lift, _ := opts["lift_name"].(string)

		forwardEntry, exitAction := LaneAction{}, LaneAction{}
		backEntry := LaneAction{}
		switch {
		case door != "":
			forwardEntry, exitAction = DoorOpen(door), DoorClose(door)
			backEntry = forwardEntry
		case lift != "":
			forwardEntry, exitAction = LiftSessionBegin(lift, mapName), LiftSessionEnd(lift, mapName)
			backEntry = forwardEntry
		}
		if dock != "" {
			forwardEntry = Dock(dock)
		}

		b.AddLane(offset+entry, offset+exit, forwardEntry, exitAction)
		if bidirectional {
			b.AddLane(offset+exit, offset+entry, backEntry, exitAction)
		}
	}
	return b.err
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	}
	return 0, false
}
