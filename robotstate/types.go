package robotstate

import "time"

// Snapshot is the latest known state of a robot as seen by the adapter.
type Snapshot struct {
	Name       string    `cbor:"1,keyasint" json:"name"`
	Fleet      string    `cbor:"2,keyasint" json:"fleet"`
	Model      string    `cbor:"3,keyasint,omitempty" json:"model,omitempty"`
	Map        string    `cbor:"4,keyasint" json:"map"`
	X          float64   `cbor:"5,keyasint" json:"x"`
	Y          float64   `cbor:"6,keyasint" json:"y"`
	Yaw        float64   `cbor:"7,keyasint" json:"yaw"`
	BatterySOC float64   `cbor:"8,keyasint" json:"battery_soc"`
	Mode       string    `cbor:"9,keyasint" json:"mode"`
	CommandID  uint64    `cbor:"10,keyasint" json:"command_id"`
	Position   string    `cbor:"11,keyasint" json:"position"`
	Waypoint   int       `cbor:"12,keyasint" json:"waypoint"`
	Lanes      []int     `cbor:"13,keyasint,omitempty" json:"lanes,omitempty"`
	Placed     bool      `cbor:"14,keyasint" json:"placed"`
	Hint       string    `cbor:"15,keyasint,omitempty" json:"hint,omitempty"`
	Route      *Route    `cbor:"16,keyasint,omitempty" json:"route,omitempty"`
	UpdatedAt  time.Time `cbor:"17,keyasint" json:"updated_at"`
}

// Route is the trajectory last published to the traffic schedule.
type Route struct {
	Map    string       `cbor:"1,keyasint" json:"map"`
	Points []RoutePoint `cbor:"2,keyasint" json:"points"`
}

type RoutePoint struct {
	Time time.Time `cbor:"1,keyasint" json:"time"`
	X    float64   `cbor:"2,keyasint" json:"x"`
	Y    float64   `cbor:"3,keyasint" json:"y"`
	Yaw  float64   `cbor:"4,keyasint" json:"yaw"`
}

func (s *Snapshot) clone() *Snapshot {
	c := *s
	c.Lanes = append([]int(nil), s.Lanes...)
	if s.Route != nil {
		r := *s.Route
		r.Points = append([]RoutePoint(nil), s.Route.Points...)
		c.Route = &r
	}
	return &c
}
