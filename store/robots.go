package store

import (
	"time"
)

// Robot is the durable snapshot of a managed robot.
type Robot struct {
	Name       string    `json:"name"`
	Fleet      string    `json:"fleet"`
	Model      string    `json:"model"`
	MapName    string    `json:"map_name"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Yaw        float64   `json:"yaw"`
	BatterySOC float64   `json:"battery_soc"`
	Mode       string    `json:"mode"`
	CommandID  uint64    `json:"command_id"`
	Waypoint   int       `json:"waypoint"`
	Placed     bool      `json:"placed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const robotSelectCols = `name, fleet, model, map_name, x, y, yaw, battery_soc, mode, command_id, waypoint, placed, created_at, updated_at`

func scanRobot(row interface{ Scan(...any) error }) (*Robot, error) {
	var r Robot
	var createdAt, updatedAt any
	var commandID int64
	if err := row.Scan(&r.Name, &r.Fleet, &r.Model, &r.MapName, &r.X, &r.Y, &r.Yaw,
		&r.BatterySOC, &r.Mode, &commandID, &r.Waypoint, &r.Placed, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	r.CommandID = uint64(commandID)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

// UpsertRobot inserts or replaces the snapshot for r.Name.
func (db *DB) UpsertRobot(r *Robot) error {
	_, err := db.Exec(db.Q(`
		INSERT INTO robots (name, fleet, model, map_name, x, y, yaw, battery_soc, mode, command_id, waypoint, placed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			fleet=excluded.fleet, model=excluded.model, map_name=excluded.map_name,
			x=excluded.x, y=excluded.y, yaw=excluded.yaw, battery_soc=excluded.battery_soc,
			mode=excluded.mode, command_id=excluded.command_id, waypoint=excluded.waypoint,
			placed=excluded.placed, updated_at=datetime('now','localtime')`),
		r.Name, r.Fleet, r.Model, r.MapName, r.X, r.Y, r.Yaw, r.BatterySOC, r.Mode,
		int64(r.CommandID), r.Waypoint, r.Placed)
	return err
}

func (db *DB) GetRobot(name string) (*Robot, error) {
	row := db.QueryRow(db.Q(`SELECT `+robotSelectCols+` FROM robots WHERE name=?`), name)
	return scanRobot(row)
}

func (db *DB) ListRobots(fleet string) ([]*Robot, error) {
	rows, err := db.Query(db.Q(`SELECT `+robotSelectCols+` FROM robots WHERE fleet=? ORDER BY name`), fleet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var robots []*Robot
	for rows.Next() {
		r, err := scanRobot(rows)
		if err != nil {
			return nil, err
		}
		robots = append(robots, r)
	}
	return robots, rows.Err()
}
