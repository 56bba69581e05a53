package event

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/drawroom/drawroom-api/internal/domain"
)

// Notifier emits draw lifecycle events for downstream consumers (email,
// push, analytics). Delivery is fire and forget: a publish failure is
// logged and never blocks or reverses a draw.
type Notifier interface {
	DrawCompleted(contract domain.DrawContract)
}

// NoopNotifier is used when no broker is configured and in tests.
type NoopNotifier struct{}

func (NoopNotifier) DrawCompleted(domain.DrawContract) {}

// NATSNotifier publishes completed-draw contracts to
// drawroom.draws.completed.{drawID}.
type NATSNotifier struct {
	conn *nats.Conn
}

func NewNATSNotifier(url string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url, nats.Name("drawroom-api"))
	if err != nil {
		return nil, fmt.Errorf("nats.Connect -> %w", err)
	}

	return &NATSNotifier{conn: conn}, nil
}

func (n *NATSNotifier) DrawCompleted(contract domain.DrawContract) {
	data, err := json.Marshal(contract)
	if err != nil {
		zap.L().Error("failed to marshal draw contract", zap.Error(err))
		return
	}

	subject := fmt.Sprintf("drawroom.draws.completed.%v", contract.DrawID)
	if err := n.conn.Publish(subject, data); err != nil {
		// Non-fatal: consumers can read the stored contract directly.
		zap.L().Warn("failed to publish draw completed event",
			zap.String("draw_id", contract.DrawID), zap.Error(err))
	}
}

func (n *NATSNotifier) Close() {
	n.conn.Drain() //nolint:errcheck
}
