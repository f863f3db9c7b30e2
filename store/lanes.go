package store

import (
	"fmt"
	"time"
)

type LaneChange struct {
	ID        int64     `json:"id"`
	Fleet     string    `json:"fleet"`
	Lane      int       `json:"lane"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordLaneChanges applies opened and closed lanes to the fleet's closed
// set and appends them to the lane history in one transaction.
func (db *DB) RecordLaneChanges(fleet string, opened, closed []int, actor string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, l := range opened {
		if _, err := tx.Exec(db.Q(`DELETE FROM closed_lanes WHERE fleet=? AND lane=?`), fleet, l); err != nil {
			return fmt.Errorf("open lane %d: %w", l, err)
		}
		if _, err := tx.Exec(db.Q(`INSERT INTO lane_history (fleet, lane, action, actor) VALUES (?, ?, 'open', ?)`), fleet, l, actor); err != nil {
			return fmt.Errorf("history lane %d: %w", l, err)
		}
	}
	for _, l := range closed {
		if _, err := tx.Exec(db.Q(`INSERT INTO closed_lanes (fleet, lane) VALUES (?, ?) ON CONFLICT (fleet, lane) DO NOTHING`), fleet, l); err != nil {
			return fmt.Errorf("close lane %d: %w", l, err)
		}
		if _, err := tx.Exec(db.Q(`INSERT INTO lane_history (fleet, lane, action, actor) VALUES (?, ?, 'close', ?)`), fleet, l, actor); err != nil {
			return fmt.Errorf("history lane %d: %w", l, err)
		}
	}
	return tx.Commit()
}

func (db *DB) ListClosedLanes(fleet string) ([]int, error) {
	rows, err := db.Query(db.Q(`SELECT lane FROM closed_lanes WHERE fleet=? ORDER BY lane`), fleet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lanes []int
	for rows.Next() {
		var l int
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		lanes = append(lanes, l)
	}
	return lanes, rows.Err()
}

func (db *DB) ListLaneHistory(fleet string, limit int) ([]*LaneChange, error) {
	rows, err := db.Query(db.Q(`SELECT id, fleet, lane, action, actor, created_at FROM lane_history WHERE fleet=? ORDER BY id DESC LIMIT ?`), fleet, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*LaneChange
	for rows.Next() {
		var c LaneChange
		var createdAt any
		if err := rows.Scan(&c.ID, &c.Fleet, &c.Lane, &c.Action, &c.Actor, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, &c)
	}
	return out, rows.Err()
}
