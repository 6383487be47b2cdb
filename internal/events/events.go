// Package events publishes session lifecycle events to a message broker so
// spectators and tooling can follow a tournament without joining it.
package events

import (
	"encoding/json"
	"time"

	"ohhell-server/internal/session"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// SubjectPrefix is followed by the trigger name, e.g. ohhell.trigger.CardsDealt.
const SubjectPrefix = "ohhell.trigger"

// Event is one trigger bump together with the tournament status after it.
type Event struct {
	Trigger string         `json:"trigger"`
	Value   int            `json:"value"`
	Time    int64          `json:"time"`
	Status  session.Status `json:"status"`
}

func NewEvent(b session.Bump, st session.Status) Event {
	return Event{
		Trigger: string(b.Trigger),
		Value:   b.Value,
		Time:    time.Now().UnixMilli(),
		Status:  st,
	}
}

func (e Event) Subject() string {
	return SubjectPrefix + "." + e.Trigger
}

type Publisher interface {
	Publish(ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) error { return nil }
func (Nop) Close() error        { return nil }

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// NATSPublisher sends events as JSON on one subject per trigger.
type NATSPublisher struct {
	conn conn
}

// Connect dials the broker at url.
func Connect(url, name string) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("event broker disconnected")
			}
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", url)
	}
	logger.WithField("url", nc.ConnectedUrl()).Info("event broker connected")
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	if err := p.conn.Publish(ev.Subject(), data); err != nil {
		return errors.Wrapf(err, "publish %s", ev.Subject())
	}
	return nil
}

// Close flushes pending events and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
