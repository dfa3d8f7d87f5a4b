package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"aurora/backend/internal/constants"
	"aurora/backend/internal/graph"
	"aurora/backend/internal/metrics"
	apperrors "aurora/backend/pkg/errors"
	"aurora/backend/pkg/logger"
)

const persistTimeout = 5 * time.Second

// Store is the persistence the hub writes through
type Store interface {
	SaveChatMessage(ctx context.Context, msg graph.Message) error
	SaveDirectMessage(ctx context.Context, msg graph.Message) (*graph.Message, error)
	History(ctx context.Context, user1, user2 string) ([]graph.HistoryEntry, error)
}

// Relay fans deliveries out to other server instances
type Relay interface {
	Publish(ctx context.Context, frame OutboundFrame) error
}

// Hub routes frames between live connections and persists them
type Hub struct {
	registry *Registry
	store    Store
	breaker  *gobreaker.CircuitBreaker
	relay    Relay
	metrics  *metrics.Collector
	logger   *zap.Logger
	now      func() time.Time
}

// NewHub creates a hub. collector may be nil.
func NewHub(store Store, collector *metrics.Collector) *Hub {
	log := logger.Named("chat")
	settings := gobreaker.Settings{
		Name:        "chat-persistence",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &Hub{
		registry: NewRegistry(),
		store:    store,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		metrics:  collector,
		logger:   log,
		now:      time.Now,
	}
}

// SetRelay enables cross-instance fan-out
func (h *Hub) SetRelay(r Relay) {
	h.relay = r
}

// Registry exposes the connection registry
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Connect registers a live connection for identity
func (h *Hub) Connect(identity string, c Conn) {
	h.registry.Add(identity, c)
	if h.metrics != nil {
		h.metrics.LiveConnections.Inc()
	}
	h.logger.Info("Connection opened", zap.String("identity", identity), zap.String("conn", c.ID()))
}

// Disconnect unregisters a connection. Safe to call more than once.
func (h *Hub) Disconnect(identity string, c Conn) {
	if !h.registry.Remove(identity, c) {
		return
	}
	if h.metrics != nil {
		h.metrics.LiveConnections.Dec()
	}
	h.logger.Info("Connection closed", zap.String("identity", identity), zap.String("conn", c.ID()))
}

// Online reports whether identity has a live connection on this instance
func (h *Hub) Online(identity string) bool {
	return h.registry.Online(identity)
}

// HandleInbound decodes one raw frame from sender's origin connection and routes it.
// A returned error is a protocol error; the caller should drop the connection.
func (h *Hub) HandleInbound(ctx context.Context, sender string, origin Conn, raw []byte) error {
	frame, err := DecodeInbound(raw)
	if err != nil {
		h.logger.Warn("Rejected inbound frame",
			zap.String("sender", sender),
			zap.String("conn", origin.ID()),
			zap.Error(err))
		return err
	}
	h.Dispatch(ctx, sender, origin, frame)
	return nil
}

// Dispatch persists a frame best effort and pushes it to every live connection of
// the receiver and every other connection of the sender. Delivery never waits on
// a successful write.
func (h *Hub) Dispatch(ctx context.Context, sender string, origin Conn, frame InboundFrame) OutboundFrame {
	now := h.now().UTC()
	out := newOutbound(uuid.NewString(), sender, frame.To, frame.Ciphertext, now)

	h.persist(ctx, graph.Message{
		ID:        out.ID,
		From:      sender,
		To:        frame.To,
		Content:   frame.Ciphertext,
		Timestamp: now,
	})

	h.deliver(out, origin)

	if h.relay != nil {
		if err := h.relay.Publish(ctx, out); err != nil {
			h.logger.Warn("Failed to relay frame", zap.String("id", out.ID), zap.Error(err))
		}
	}
	return out
}

// DeliverRelayed pushes a frame that was dispatched on another instance. The
// origin connection lives elsewhere so every local sender connection receives it.
func (h *Hub) DeliverRelayed(frame OutboundFrame) {
	h.deliver(frame, nil)
}

func (h *Hub) deliver(frame OutboundFrame, origin Conn) {
	h.push(frame.To, frame, nil)
	if frame.From != frame.To {
		h.push(frame.From, frame, origin)
	}
}

// push sends to every connection of identity except skip. Failed connections are
// unregistered individually once the identity's lock is released.
func (h *Hub) push(identity string, frame OutboundFrame, skip Conn) {
	var failed []Conn
	h.registry.Each(identity, func(c Conn) {
		if skip != nil && c == skip {
			return
		}
		if err := c.Send(frame); err != nil {
			h.logger.Debug("Delivery failed",
				zap.String("identity", identity),
				zap.String("conn", c.ID()),
				zap.Error(err))
			failed = append(failed, c)
			return
		}
		if h.metrics != nil {
			h.metrics.FramesDelivered.Inc()
		}
	})
	for _, c := range failed {
		if h.metrics != nil {
			h.metrics.DeliveryFailures.Inc()
		}
		h.Disconnect(identity, c)
	}
}

func (h *Hub) persist(ctx context.Context, msg graph.Message) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	_, err := h.breaker.Execute(func() (interface{}, error) {
		return nil, h.store.SaveChatMessage(ctx, msg)
	})
	if err == nil {
		return
	}

	reason := "store"
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		reason = "open_state"
	}
	if h.metrics != nil {
		h.metrics.PersistenceFailures.WithLabelValues(reason).Inc()
	}
	h.logger.Warn("Failed to persist chat message",
		zap.String("id", msg.ID),
		zap.String("sender", msg.From),
		zap.String("receiver", msg.To),
		zap.String("reason", reason),
		zap.Error(err))
}

// SendDirect stores a REST direct message between two registered users and pushes
// it to both parties' live connections. Unlike frames, persistence must succeed.
func (h *Hub) SendDirect(ctx context.Context, sender, recipient, content string) (*graph.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidation("content", "must not be empty")
	}
	if len(content) > constants.DirectMessageMaxLength {
		return nil, apperrors.NewValidation("content",
			fmt.Sprintf("must be at most %d characters", constants.DirectMessageMaxLength))
	}

	saved, err := h.store.SaveDirectMessage(ctx, graph.Message{
		ID:        uuid.NewString(),
		From:      sender,
		To:        recipient,
		Content:   content,
		Timestamp: h.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	frame := newOutbound(saved.ID, saved.From, saved.To, saved.Content, saved.Timestamp)
	h.deliver(frame, nil)
	if h.relay != nil {
		if err := h.relay.Publish(ctx, frame); err != nil {
			h.logger.Warn("Failed to relay direct message", zap.String("id", frame.ID), zap.Error(err))
		}
	}
	return saved, nil
}

// History returns both directions of the conversation between two identities, oldest first
func (h *Hub) History(ctx context.Context, user1, user2 string) ([]graph.HistoryEntry, error) {
	return h.store.History(ctx, user1, user2)
}
