package messaging

import (
	"github.com/Tractonomy/free-fleet-ros2/protocol"
)

// Consumer subscribes to inbound topics and feeds every payload through a
// protocol ingestor.
type Consumer struct {
	client   *Client
	topics   []string
	ingestor *protocol.Ingestor
}

func NewConsumer(client *Client, ingestor *protocol.Ingestor, topics ...string) *Consumer {
	return &Consumer{
		client:   client,
		topics:   topics,
		ingestor: ingestor,
	}
}

func (c *Consumer) Start() error {
	for _, topic := range c.topics {
		if topic == "" {
			continue
		}
		if err := c.client.Subscribe(topic, c.handleMessage); err != nil {
			return err
		}
	}
	return nil
}

func (c *Consumer) handleMessage(_ string, payload []byte) {
	c.ingestor.HandleRaw(payload)
}
