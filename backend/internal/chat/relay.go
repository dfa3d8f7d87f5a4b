package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"aurora/backend/internal/constants"
	"aurora/backend/internal/metrics"
	"aurora/backend/pkg/logger"
)

// envelope carries a dispatched frame between instances
type envelope struct {
	Origin string        `json:"origin"`
	Frame  OutboundFrame `json:"frame"`
}

// NATSRelay publishes local deliveries on a NATS subject and replays other
// instances' deliveries into the local hub.
type NATSRelay struct {
	nc       *nats.Conn
	sub      *nats.Subscription
	subject  string
	instance string
	hub      *Hub
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewNATSRelay connects to url and subscribes the hub to the chat subject
func NewNATSRelay(url, instance string, hub *Hub, collector *metrics.Collector) (*NATSRelay, error) {
	log := logger.Named("relay")
	nc, err := nats.Connect(url,
		nats.Name("aurora-"+instance),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	r := newRelay(instance, hub, collector)
	r.nc = nc
	r.sub, err = nc.Subscribe(r.subject, r.handle)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s: %w", r.subject, err)
	}
	hub.SetRelay(r)

	log.Info("Chat relay connected", zap.String("subject", r.subject), zap.String("instance", instance))
	return r, nil
}

func newRelay(instance string, hub *Hub, collector *metrics.Collector) *NATSRelay {
	return &NATSRelay{
		subject:  constants.ChatSubject,
		instance: instance,
		hub:      hub,
		metrics:  collector,
		logger:   logger.Named("relay"),
	}
}

// Publish sends a locally dispatched frame to the other instances.
// nats.Conn.Publish does not block on the network so ctx is only checked up front.
func (r *NATSRelay) Publish(ctx context.Context, frame OutboundFrame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(envelope{Origin: r.instance, Frame: frame})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := r.nc.Publish(r.subject, data); err != nil {
		return err
	}
	r.count("out")
	return nil
}

func (r *NATSRelay) handle(msg *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		r.logger.Warn("Dropping malformed relay envelope", zap.Error(err))
		return
	}
	if env.Origin == r.instance {
		return
	}
	r.count("in")
	r.hub.DeliverRelayed(env.Frame)
}

func (r *NATSRelay) count(direction string) {
	if r.metrics != nil {
		r.metrics.RelayMessages.WithLabelValues(direction).Inc()
	}
}

// Close drains the subscription and the connection
func (r *NATSRelay) Close() error {
	if r.nc == nil {
		return nil
	}
	return r.nc.Drain()
}
