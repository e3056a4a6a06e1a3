// Package notify fans committed ledger journals out to other processes.
//
// Publishing happens after the unit of work has committed. A failed publish
// never affects the committed state; callers log it and move on.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/roach88/potionshop/internal/shop"
)

// DefaultQueue is the queue journals are published to when none is configured.
const DefaultQueue = "potionshop.ledger"

// Message is the JSON body of a published journal.
type Message struct {
	Type    string       `json:"type"`
	Journal shop.Journal `json:"journal"`
}

// AMQP publishes journals to a durable RabbitMQ queue. The connection is
// dialed on first use and re-dialed after a failure.
type AMQP struct {
	url   string
	queue string
	now   func() time.Time

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQP creates a publisher. No connection is made until Publish.
func NewAMQP(url, queue string) *AMQP {
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQP{url: url, queue: queue, now: time.Now}
}

// Publish sends one journal as a persistent JSON message.
func (p *AMQP) Publish(ctx context.Context, j shop.Journal) error {
	body, err := json.Marshal(Message{Type: "ledger.committed", Journal: j})
	if err != nil {
		return fmt.Errorf("amqp: marshal journal: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(); err != nil {
		return err
	}

	err = p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    j.TxnID,
			Type:         j.Op,
			Timestamp:    p.now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		p.resetLocked()
		return fmt.Errorf("amqp: publish %s: %w", j.TxnID, err)
	}
	return nil
}

func (p *AMQP) connectLocked() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.resetLocked()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp: channel open: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("amqp: queue declare %s: %w", p.queue, err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *AMQP) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close closes the connection if one is open.
func (p *AMQP) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

// Recorder keeps every published journal in memory.
type Recorder struct {
	mu       sync.Mutex
	journals []shop.Journal
	// Err, if set, is returned from every Publish after recording.
	Err error
}

func (r *Recorder) Publish(_ context.Context, j shop.Journal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journals = append(r.journals, j)
	return r.Err
}

// Journals returns a copy of what has been published so far.
func (r *Recorder) Journals() []shop.Journal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]shop.Journal(nil), r.journals...)
}
