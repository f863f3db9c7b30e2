package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Tractonomy/free-fleet-ros2/config"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: dbPath},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})
	return db
}

func TestRobotUpsert(t *testing.T) {
	db := testDB(t)

	r := &Robot{Name: "r1", Fleet: "tinyRobot", MapName: "L1", X: 1.5, Y: -2, BatterySOC: 0.8, Mode: "idle", CommandID: 3, Waypoint: -1}
	if err := db.UpsertRobot(r); err != nil {
		t.Fatalf("insert: %v", err)
	}
	r.X, r.Waypoint, r.Placed, r.CommandID = 4, 7, true, 4
	if err := db.UpsertRobot(r); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := db.GetRobot("r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.X != 4 || got.Waypoint != 7 || !got.Placed || got.CommandID != 4 {
		t.Errorf("robot = %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}

	if err := db.UpsertRobot(&Robot{Name: "r0", Fleet: "tinyRobot", Waypoint: -1}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertRobot(&Robot{Name: "x", Fleet: "other", Waypoint: -1}); err != nil {
		t.Fatal(err)
	}
	list, err := db.ListRobots("tinyRobot")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "r0" || list[1].Name != "r1" {
		t.Errorf("list = %+v", list)
	}
}

func TestGetRobotMissing(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetRobot("ghost"); err == nil {
		t.Error("expected error for missing robot")
	}
}

func TestLaneChanges(t *testing.T) {
	db := testDB(t)

	if err := db.RecordLaneChanges("f", nil, []int{3, 1, 3}, "ops"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := db.RecordLaneChanges("g", nil, []int{9}, "ops"); err != nil {
		t.Fatalf("close other fleet: %v", err)
	}
	lanes, err := db.ListClosedLanes("f")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(lanes) != 2 || lanes[0] != 1 || lanes[1] != 3 {
		t.Fatalf("closed = %v, want [1 3]", lanes)
	}

	if err := db.RecordLaneChanges("f", []int{1}, nil, "ops"); err != nil {
		t.Fatalf("open: %v", err)
	}
	lanes, _ = db.ListClosedLanes("f")
	if len(lanes) != 1 || lanes[0] != 3 {
		t.Errorf("closed after open = %v, want [3]", lanes)
	}

	hist, err := db.ListLaneHistory("f", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 4 {
		t.Fatalf("history = %d entries, want 4", len(hist))
	}
	if hist[0].Action != "open" || hist[0].Lane != 1 {
		t.Errorf("latest = %+v", hist[0])
	}
}

func TestOutbox(t *testing.T) {
	db := testDB(t)

	if err := db.EnqueueOutbox("fleet/events", []byte(`{"a":1}`), "robot.event", "node"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := db.EnqueueOutbox("fleet/events", []byte(`{"a":2}`), "robot.event", "node"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	msgs, err := db.ListPendingOutbox(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 || string(msgs[0].Payload) != `{"a":1}` {
		t.Fatalf("pending = %+v", msgs)
	}
	if msgs[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be parsed")
	}

	if err := db.IncrementOutboxRetries(msgs[1].ID); err != nil {
		t.Fatal(err)
	}
	if err := db.AckOutbox(msgs[0].ID); err != nil {
		t.Fatal(err)
	}
	msgs, _ = db.ListPendingOutbox(10)
	if len(msgs) != 1 || msgs[0].Retries != 1 {
		t.Fatalf("pending after ack = %+v", msgs)
	}
	if err := db.DeadLetterOutbox(msgs[0].ID); err != nil {
		t.Fatal(err)
	}
	if msgs, _ = db.ListPendingOutbox(10); len(msgs) != 0 {
		t.Errorf("pending after dead letter = %d", len(msgs))
	}
}

func TestAudit(t *testing.T) {
	db := testDB(t)
	if err := db.AppendAudit("robot", "r1", "interrupted", "", "adapter_error", "system"); err != nil {
		t.Fatal(err)
	}
	if err := db.AppendAudit("lane", "4", "closed", "open", "closed", "ops"); err != nil {
		t.Fatal(err)
	}
	all, err := db.ListAuditLog(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].EntityType != "lane" {
		t.Fatalf("audit = %+v", all)
	}
	mine, err := db.ListEntityAudit("robot", "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].Action != "interrupted" {
		t.Errorf("entity audit = %+v", mine)
	}
}

func TestAdminUsers(t *testing.T) {
	db := testDB(t)
	exists, err := db.AdminUserExists()
	if err != nil || exists {
		t.Fatalf("exists = %v, %v", exists, err)
	}
	if err := db.CreateAdminUser("admin", "hash"); err != nil {
		t.Fatal(err)
	}
	u, err := db.GetAdminUser("admin")
	if err != nil {
		t.Fatal(err)
	}
	if u.PasswordHash != "hash" {
		t.Errorf("hash = %q", u.PasswordHash)
	}
	if err := db.CreateAdminUser("admin", "again"); err == nil {
		t.Error("duplicate username should fail")
	}
}

func TestRebind(t *testing.T) {
	got := Rebind("SELECT * FROM t WHERE a=? AND b=?")
	if got != "SELECT * FROM t WHERE a=$1 AND b=$2" {
		t.Errorf("Rebind = %q", got)
	}
}
