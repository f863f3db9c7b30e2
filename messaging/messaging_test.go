package messaging

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Tractonomy/free-fleet-ros2/command"
	"github.com/Tractonomy/free-fleet-ros2/config"
	"github.com/Tractonomy/free-fleet-ros2/fleet"
	"github.com/Tractonomy/free-fleet-ros2/navgraph"
	"github.com/Tractonomy/free-fleet-ros2/plan"
	"github.com/Tractonomy/free-fleet-ros2/protocol"
	"github.com/Tractonomy/free-fleet-ros2/store"
)

// --- Mocks ---

type sent struct {
	topic   string
	payload []byte
}

type mockClient struct {
	sent []sent
	err  error
}

func (c *mockClient) Publish(topic string, payload []byte) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sent{topic, payload})
	return nil
}

type queued struct {
	topic, msgType, nodeID string
	payload                []byte
}

type mockOutbox struct {
	queued []queued
}

func (o *mockOutbox) EnqueueOutbox(topic string, payload []byte, msgType, nodeID string) error {
	o.queued = append(o.queued, queued{topic, msgType, nodeID, payload})
	return nil
}

type mockOutboxStore struct {
	pending []*store.OutboxMessage
	acked   []int64
	retried []int64
	dead    []int64
}

func (s *mockOutboxStore) ListPendingOutbox(limit int) ([]*store.OutboxMessage, error) {
	return s.pending, nil
}

func (s *mockOutboxStore) AckOutbox(id int64) error {
	s.acked = append(s.acked, id)
	return nil
}

func (s *mockOutboxStore) IncrementOutboxRetries(id int64) error {
	s.retried = append(s.retried, id)
	return nil
}

func (s *mockOutboxStore) DeadLetterOutbox(id int64) error {
	s.dead = append(s.dead, id)
	return nil
}

type mockSinks struct {
	states []fleet.FleetState
	lanes  []fleet.LaneRequest
}

func (m *mockSinks) HandleFleetState(fs fleet.FleetState) { m.states = append(m.states, fs) }

func (m *mockSinks) HandleLaneRequest(req fleet.LaneRequest) navgraph.LaneSet {
	m.lanes = append(m.lanes, req)
	return navgraph.NewLaneSet(req.Close...)
}

func testMessagingConfig() *config.MessagingConfig {
	cfg := config.Defaults().Messaging
	return &cfg
}

func decodeEnvelope(t *testing.T, data []byte, target any) *protocol.Envelope {
	t.Helper()
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if err := env.DecodePayload(target); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return &env
}

// --- Mapper tests ---

func TestStateFromWire(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := StateFromWire(protocol.RobotState{
		Name:           "r1",
		TaskID:         9,
		Mode:           "docking",
		BatteryPercent: 55,
		Location:       protocol.Location{T: ts, X: 1, Y: 2, Yaw: 0.3, Level: "L1"},
		Path:           []protocol.Location{{X: 4, Y: 5, Level: "L1"}},
	})
	if err != nil {
		t.Fatalf("StateFromWire: %v", err)
	}
	if s.Mode != command.ModeDocking || s.CommandID != 9 {
		t.Errorf("state = %+v", s)
	}
	if s.Location.Map != "L1" || s.Location.Pose.Yaw != 0.3 || !s.Location.Time.Equal(ts) {
		t.Errorf("location = %+v", s.Location)
	}
	if len(s.Path) != 1 || s.Path[0].Pose.X != 4 {
		t.Errorf("path = %+v", s.Path)
	}
}

func TestFleetStateFromWireSkipsBadMode(t *testing.T) {
	fs, errs := FleetStateFromWire(protocol.FleetState{
		Name: "f",
		Robots: []protocol.RobotState{
			{Name: "ok", Mode: "idle"},
			{Name: "bad", Mode: "flying"},
		},
	})
	if len(fs.Robots) != 1 || fs.Robots[0].Name != "ok" {
		t.Errorf("robots = %+v", fs.Robots)
	}
	if len(errs) != 1 {
		t.Errorf("errs = %v, want 1", errs)
	}
}

// --- Publisher tests ---

func TestSendPath(t *testing.T) {
	client := &mockClient{}
	cfg := testMessagingConfig()
	pub := NewCommandPublisher(client, nil, cfg)

	err := pub.SendPath(command.PathRequest{
		Fleet:     "f",
		Robot:     "r1",
		CommandID: 3,
		Path:      []command.Location{{Map: "L1", Pose: plan.Pose{X: 1}}},
		Nodes:     []command.NavigationPoint{{WaypointIndex: 4, Yaw: 1.5}},
	})
	if err != nil {
		t.Fatalf("SendPath: %v", err)
	}
	if len(client.sent) != 1 || client.sent[0].topic != cfg.PathRequestTopic {
		t.Fatalf("sent = %+v", client.sent)
	}
	var req protocol.PathRequest
	env := decodeEnvelope(t, client.sent[0].payload, &req)
	if env.Type != protocol.TypePathRequest || env.Dst.Node != "r1" || env.Src.Role != protocol.RoleAdapter {
		t.Errorf("envelope = %+v", env)
	}
	if req.TaskID != 3 || req.Path[0].Level != "L1" || req.Nodes[0].WaypointIndex != 4 {
		t.Errorf("request = %+v", req)
	}
}

func TestSendModeDocking(t *testing.T) {
	client := &mockClient{}
	cfg := testMessagingConfig()
	pub := NewCommandPublisher(client, nil, cfg)

	err := pub.SendMode(command.ModeRequest{
		Fleet: "f", Robot: "r1", CommandID: 5, Mode: command.ModeDocking,
		Parameters: []command.ModeParameter{{Name: "docking", Value: "d1"}},
	})
	if err != nil {
		t.Fatalf("SendMode: %v", err)
	}
	var req protocol.ModeRequest
	decodeEnvelope(t, client.sent[0].payload, &req)
	if req.Mode != "docking" || len(req.Parameters) != 1 || req.Parameters[0].Value != "d1" {
		t.Errorf("request = %+v", req)
	}
}

func TestClosedLanesFallsBackToOutbox(t *testing.T) {
	client := &mockClient{err: errors.New("broker down")}
	outbox := &mockOutbox{}
	cfg := testMessagingConfig()
	pub := NewCommandPublisher(client, outbox, cfg)

	if err := pub.PublishClosedLanes("f", []int{1, 4}, "abc"); err != nil {
		t.Fatalf("PublishClosedLanes: %v", err)
	}
	if len(outbox.queued) != 1 || outbox.queued[0].msgType != protocol.TypeClosedLanes {
		t.Fatalf("queued = %+v", outbox.queued)
	}
	var cl protocol.ClosedLanes
	decodeEnvelope(t, outbox.queued[0].payload, &cl)
	if cl.GraphFingerprint != "abc" || len(cl.ClosedLanes) != 2 {
		t.Errorf("closed lanes = %+v", cl)
	}
}

func TestClosedLanesEmptyListEncoded(t *testing.T) {
	client := &mockClient{}
	pub := NewCommandPublisher(client, nil, testMessagingConfig())
	if err := pub.PublishClosedLanes("f", nil, ""); err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	decodeEnvelope(t, client.sent[0].payload, &raw)
	if string(raw["closed_lanes"]) != "[]" {
		t.Errorf("closed_lanes = %s, want []", raw["closed_lanes"])
	}
}

func TestRobotEventQueued(t *testing.T) {
	client := &mockClient{}
	outbox := &mockOutbox{}
	cfg := testMessagingConfig()
	pub := NewCommandPublisher(client, outbox, cfg)

	if err := pub.PublishRobotEvent(protocol.RobotEvent{FleetName: "f", RobotName: "r1", Event: protocol.EventInterrupted}); err != nil {
		t.Fatal(err)
	}
	if len(client.sent) != 0 {
		t.Error("robot event should go through the outbox")
	}
	if len(outbox.queued) != 1 || outbox.queued[0].topic != cfg.EventsTopic || outbox.queued[0].nodeID != cfg.NodeID {
		t.Errorf("queued = %+v", outbox.queued)
	}
}

// --- Outbox drainer ---

func TestOutboxDrain(t *testing.T) {
	st := &mockOutboxStore{pending: []*store.OutboxMessage{
		{ID: 1, Topic: "a", Payload: []byte("x")},
		{ID: 2, Topic: "b", Payload: []byte("y")},
	}}
	client := &mockClient{}
	d := newOutboxDrainer(st, client, time.Second)
	d.drain()

	if len(client.sent) != 2 || len(st.acked) != 2 {
		t.Errorf("sent=%d acked=%v", len(client.sent), st.acked)
	}
}

func TestOutboxDrainFailure(t *testing.T) {
	st := &mockOutboxStore{pending: []*store.OutboxMessage{
		{ID: 1, Topic: "a", Retries: 0},
		{ID: 2, Topic: "b", Retries: MaxOutboxRetries - 1},
	}}
	d := newOutboxDrainer(st, &mockClient{err: errors.New("down")}, time.Second)
	d.drain()

	if len(st.retried) != 1 || st.retried[0] != 1 {
		t.Errorf("retried = %v, want [1]", st.retried)
	}
	if len(st.dead) != 1 || st.dead[0] != 2 {
		t.Errorf("dead = %v, want [2]", st.dead)
	}
	if len(st.acked) != 0 {
		t.Errorf("acked = %v", st.acked)
	}
}

func TestOutboxStopTwice(t *testing.T) {
	d := newOutboxDrainer(&mockOutboxStore{}, &mockClient{}, time.Hour)
	d.Start()
	d.Stop()
	d.Stop()
}

// --- Inbound handling ---

func TestFleetHandlerRoutesMessages(t *testing.T) {
	sinks := &mockSinks{}
	ing := protocol.NewIngestor(NewFleetHandler(sinks, sinks), AdapterFilter("adapter-1"))

	env, err := protocol.NewEnvelope(protocol.TypeFleetState,
		protocol.Address{Role: protocol.RoleRobot, Node: "r1"},
		protocol.Address{Role: protocol.RoleAdapter},
		&protocol.FleetState{Name: "f", Robots: []protocol.RobotState{{Name: "r1", Mode: "idle"}}})
	if err != nil {
		t.Fatal(err)
	}
	data, _ := env.Encode()
	ing.HandleRaw(data)

	env, err = protocol.NewEnvelope(protocol.TypeLaneRequest,
		protocol.Address{Role: protocol.RoleOps, Node: "console"},
		protocol.Address{Role: protocol.RoleAdapter, Node: "adapter-1"},
		&protocol.LaneRequest{FleetName: "f", CloseLanes: []int{3}})
	if err != nil {
		t.Fatal(err)
	}
	data, _ = env.Encode()
	ing.HandleRaw(data)

	if len(sinks.states) != 1 || sinks.states[0].Robots[0].Name != "r1" {
		t.Errorf("states = %+v", sinks.states)
	}
	if len(sinks.lanes) != 1 || sinks.lanes[0].Actor != "console" || sinks.lanes[0].Close[0] != 3 {
		t.Errorf("lanes = %+v", sinks.lanes)
	}
}

func TestAdapterFilter(t *testing.T) {
	f := AdapterFilter("adapter-1")
	tests := []struct {
		dst  protocol.Address
		want bool
	}{
		{protocol.Address{}, true},
		{protocol.Address{Role: protocol.RoleAdapter}, true},
		{protocol.Address{Role: protocol.RoleAdapter, Node: "adapter-1"}, true},
		{protocol.Address{Role: protocol.RoleAdapter, Node: "adapter-2"}, false},
		{protocol.Address{Role: protocol.RoleRobot, Node: "r1"}, false},
	}
	for _, tt := range tests {
		if got := f(&protocol.RawHeader{Dst: tt.dst}); got != tt.want {
			t.Errorf("filter(%+v) = %v, want %v", tt.dst, got, tt.want)
		}
	}
}
