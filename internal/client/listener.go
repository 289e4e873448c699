package client

import "github.com/lox/blackjack/internal/protocol"

// Listener receives player-side notifications from the read loop, one at a
// time and in arrival order.
type Listener interface {
	OnConnected()
	OnConnectionFailed(err error)
	OnDisconnected()
	OnMessage(msg protocol.Message)
	OnError(err error)
}

// BaseListener implements Listener with no-ops for embedding
type BaseListener struct{}

func (BaseListener) OnConnected()               {}
func (BaseListener) OnConnectionFailed(error)   {}
func (BaseListener) OnDisconnected()            {}
func (BaseListener) OnMessage(protocol.Message) {}
func (BaseListener) OnError(error)              {}

var _ Listener = BaseListener{}
