package messaging

import (
	"fmt"
	"log"

	"github.com/Tractonomy/free-fleet-ros2/command"
	"github.com/Tractonomy/free-fleet-ros2/config"
	"github.com/Tractonomy/free-fleet-ros2/protocol"
)

// Outbox queues payloads for the OutboxDrainer. *store.DB implements it.
type Outbox interface {
	EnqueueOutbox(topic string, payload []byte, msgType, nodeID string) error
}

// CommandPublisher delivers robot commands and adapter notifications.
// Commands are published directly; their loss is covered by the command
// handle's resend policy. Notifications fall back to the outbox.
type CommandPublisher struct {
	client Publisher
	outbox Outbox
	cfg    *config.MessagingConfig
}

var _ command.Dispatcher = (*CommandPublisher)(nil)

// NewCommandPublisher creates a publisher. outbox may be nil, in which case
// failed notifications are only logged.
func NewCommandPublisher(client Publisher, outbox Outbox, cfg *config.MessagingConfig) *CommandPublisher {
	return &CommandPublisher{client: client, outbox: outbox, cfg: cfg}
}

func (p *CommandPublisher) src(fleet string) protocol.Address {
	return protocol.Address{Role: protocol.RoleAdapter, Node: p.cfg.NodeID, Fleet: fleet}
}

func (p *CommandPublisher) encode(msgType string, dst protocol.Address, fleet string, payload any) ([]byte, error) {
	env, err := protocol.NewEnvelope(msgType, p.src(fleet), dst, payload)
	if err != nil {
		return nil, fmt.Errorf("build %s envelope: %w", msgType, err)
	}
	data, err := env.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", msgType, err)
	}
	return data, nil
}

func (p *CommandPublisher) SendPath(req command.PathRequest) error {
	dst := protocol.Address{Role: protocol.RoleRobot, Node: req.Robot, Fleet: req.Fleet}
	data, err := p.encode(protocol.TypePathRequest, dst, req.Fleet, PathRequestToWire(req))
	if err != nil {
		return err
	}
	return p.client.Publish(p.cfg.PathRequestTopic, data)
}

func (p *CommandPublisher) SendMode(req command.ModeRequest) error {
	dst := protocol.Address{Role: protocol.RoleRobot, Node: req.Robot, Fleet: req.Fleet}
	data, err := p.encode(protocol.TypeModeRequest, dst, req.Fleet, ModeRequestToWire(req))
	if err != nil {
		return err
	}
	return p.client.Publish(p.cfg.ModeRequestTopic, data)
}

// PublishClosedLanes announces the full closed set. A failed publish is
// queued in the outbox.
func (p *CommandPublisher) PublishClosedLanes(fleet string, lanes []int, fingerprint string) error {
	if lanes == nil {
		lanes = []int{}
	}
	payload := protocol.ClosedLanes{FleetName: fleet, ClosedLanes: lanes, GraphFingerprint: fingerprint}
	dst := protocol.Address{Role: protocol.RoleOps, Fleet: fleet}
	data, err := p.encode(protocol.TypeClosedLanes, dst, fleet, payload)
	if err != nil {
		return err
	}
	if err := p.client.Publish(p.cfg.ClosedLanesTopic, data); err != nil {
		log.Printf("messaging: publish closed lanes for %s: %v; queueing", fleet, err)
		return p.enqueue(p.cfg.ClosedLanesTopic, data, protocol.TypeClosedLanes)
	}
	return nil
}

// PublishRobotEvent queues a robot event for the outbox drainer.
func (p *CommandPublisher) PublishRobotEvent(ev protocol.RobotEvent) error {
	dst := protocol.Address{Role: protocol.RoleOps, Fleet: ev.FleetName}
	data, err := p.encode(protocol.TypeRobotEvent, dst, ev.FleetName, ev)
	if err != nil {
		return err
	}
	if p.outbox == nil {
		return p.client.Publish(p.cfg.EventsTopic, data)
	}
	return p.enqueue(p.cfg.EventsTopic, data, protocol.TypeRobotEvent)
}

func (p *CommandPublisher) enqueue(topic string, data []byte, msgType string) error {
	if p.outbox == nil {
		return fmt.Errorf("no outbox for %s", msgType)
	}
	if err := p.outbox.EnqueueOutbox(topic, data, msgType, p.cfg.NodeID); err != nil {
		return fmt.Errorf("enqueue %s: %w", msgType, err)
	}
	return nil
}
