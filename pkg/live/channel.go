package live

import (
	"context"
	"iter"
)

// Channel is one ordered bidirectional message stream to the agent.
// Send order is delivery order; Messages yields inbound frames until the
// channel closes or fails.
type Channel interface {
	Send(msg *ClientMessage) error
	Messages() iter.Seq2[*ServerMessage, error]
	Close() error
}

// Dialer opens a Channel, delivering the session setup during the
// handshake. Implementations: WebSocketDialer, geminilive.Dialer.
type Dialer interface {
	Dial(ctx context.Context, setup Setup) (Channel, error)
}
