package messaging

import (
	"log"
	"sync"
	"time"

	"github.com/Tractonomy/free-fleet-ros2/store"
)

// MaxOutboxRetries is how many failed publishes a message survives before it
// is dead-lettered.
const MaxOutboxRetries = 20

// Publisher sends raw payloads. *Client implements it.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

type outboxStore interface {
	ListPendingOutbox(limit int) ([]*store.OutboxMessage, error)
	AckOutbox(id int64) error
	IncrementOutboxRetries(id int64) error
	DeadLetterOutbox(id int64) error
}

// OutboxDrainer periodically sends pending outbox messages.
type OutboxDrainer struct {
	db       outboxStore
	client   Publisher
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewOutboxDrainer(db *store.DB, client Publisher, interval time.Duration) *OutboxDrainer {
	return newOutboxDrainer(db, client, interval)
}

func newOutboxDrainer(db outboxStore, client Publisher, interval time.Duration) *OutboxDrainer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &OutboxDrainer{
		db:       db,
		client:   client,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (d *OutboxDrainer) Start() {
	go d.run()
}

func (d *OutboxDrainer) Stop() {
	d.stopOnce.Do(func() { close(d.stopChan) })
}

func (d *OutboxDrainer) run() {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.drain()
		}
	}
}

func (d *OutboxDrainer) drain() {
	msgs, err := d.db.ListPendingOutbox(50)
	if err != nil {
		log.Printf("outbox: list pending: %v", err)
		return
	}
	for _, msg := range msgs {
		if err := d.client.Publish(msg.Topic, msg.Payload); err != nil {
			if msg.Retries+1 >= MaxOutboxRetries {
				log.Printf("outbox: dead-lettering %s message %d after %d retries: %v", msg.MsgType, msg.ID, msg.Retries+1, err)
				d.db.DeadLetterOutbox(msg.ID)
				continue
			}
			log.Printf("outbox: publish to %s failed: %v", msg.Topic, err)
			d.db.IncrementOutboxRetries(msg.ID)
			continue
		}
		d.db.AckOutbox(msg.ID)
	}
}
