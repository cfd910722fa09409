// Package amqp implements the message broker interface for AMQP compliant brokers (ie RabbitMQ)
package amqp

import (
	"encoding/json"
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"github.com/streadway/amqp"

	"github.com/tarancss/faucet/lib/msg"
)

var log = logging.Logger("amqp")

// Amqp implements a connection to a broker and a channel for reuse. Publishing is serialized as amqp channels are not
// safe for concurrent use.
type Amqp struct {
	conn *amqp.Connection
	mu   sync.Mutex
	ch   *amqp.Channel
}

// New instantiates a new amqp broker.
func New(uri string) (*Amqp, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to broker: %w", err)
	}

	log.Infof("Connected to broker")

	return &Amqp{conn: conn}, nil
}

// Setup obtains an amqp channel and declares the message broker exchange:
//
// - fe ("faucet events"): the faucet publishes a drip event to this exchange after every successful drip
func (r *Amqp) Setup(x interface{}) error {
	// obtain a one-use channel
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()

	return channel.ExchangeDeclare(msg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil)
}

// Close terminates gracefully the connection to the AMQP message broker
func (r *Amqp) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			log.Errorf("Error closing amqp.Channel:%s", err)
		}

		r.ch = nil

		log.Infof("amqp.Channel closed!")
	}

	return r.conn.Close()
}

// SendDrip publishes a drip event to the "fe" exchange with routing key <net>.drip.<addr>.
func (r *Amqp) SendDrip(net string, e msg.DripEvent) error {
	// marshal to JSON
	jsonDoc, err := json.Marshal(e)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// obtain channel if not present
	if r.ch == nil {
		if r.ch, err = r.conn.Channel(); err != nil {
			return err
		}
	}
	// build body
	m := amqp.Publishing{
		Headers:     amqp.Table{"x-drip-name": net + "." + e.Hash},
		Body:        jsonDoc,
		ContentType: "application/json",
		Timestamp:   e.TS,
	}
	// publish
	if err = r.ch.Publish(msg.Exchange, net+".drip."+e.Addr, false, false, m); err != nil {
		log.Errorf("[%s] Error sending drip event to message broker %s", net, err)

		// a failed publish closes the channel, get a new one next time
		r.ch = nil

		return err
	}

	return nil
}

// GetDrips consumes drip events from the "fe" exchange for the specified network pushing them to the returned channel.
// Messages are acknowledged once decoded. Decoding errors go to the error channel when there is room for them, so a
// consumer reading only the events never blocks the delivery.
func (r *Amqp) GetDrips(net string) (<-chan msg.DripEvent, <-chan error, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	// declare queue
	if _, err = ch.QueueDeclare(msg.Exchange+net, true, false, false, false, nil); err != nil {
		return nil, nil, err
	}
	// bind queue to exchange
	if err = ch.QueueBind(msg.Exchange+net, net+".drip.*", msg.Exchange, false, nil); err != nil {
		return nil, nil, err
	}
	// create channel for receiving events
	msgs, err := ch.Consume(msg.Exchange+net, "faucet-"+net, false, false, false, false, nil)
	if err != nil {
		return nil, nil, err
	}

	eves := make(chan msg.DripEvent)
	errs := make(chan error, 1)
	// start routine to consume messages from broker, both channels are closed when the delivery stops
	go func() {
		defer ch.Close()
		defer close(errs)
		defer close(eves)

		for m := range msgs {
			var e msg.DripEvent
			if err := json.Unmarshal(m.Body, &e); err != nil {
				_ = m.Nack(false, false)

				// errors are dropped when nobody reads them
				select {
				case errs <- err:
				default:
					log.Warnf("[%s] Dropping undecodable drip event: %s", net, err)
				}

				continue
			}

			_ = m.Ack(false)
			eves <- e
		}
	}()

	return eves, errs, nil
}
