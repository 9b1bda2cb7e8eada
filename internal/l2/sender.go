package l2

import (
	"context"
	"fmt"

	"github.com/cococorp/steerd/internal/steering"
)

// Sender adapts a Conn to steering.FrameSender, the interface the flood
// engine uses to reach peer BSSes.
type Sender struct {
	conn Conn
}

// NewSender wraps conn as a steering.FrameSender.
func NewSender(conn Conn) *Sender {
	return &Sender{conn: conn}
}

// Send implements steering.FrameSender.
func (s *Sender) Send(ctx context.Context, peer steering.MAC, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("l2: send: %w", err)
	}
	if _, err := s.conn.WriteFrame(peer, frame); err != nil {
		return fmt.Errorf("l2: send to %s: %w", peer, err)
	}
	return nil
}
