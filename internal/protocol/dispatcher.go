package protocol

import (
	"io"

	"lobbyplatform/internal/logging"
)

// HandlerFunc processes one decoded envelope on behalf of a connection and
// writes zero or more framed replies to w.
type HandlerFunc func(w io.Writer, env *Envelope) error

// Dispatcher is a static type->handler table. The lobby and developer
// endpoints build one per accepted connection, and only that connection's
// read loop uses it. It is grounded on
// the teacher's CommandRegistry (internal/game/commands.go): a map populated
// by Register calls, looked up by name on every incoming message.
type Dispatcher struct {
	handlers map[string]HandlerFunc
}

// NewDispatcher creates an empty dispatch table.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

// Register binds a message kind to its handler. Re-registering a kind
// replaces the previous handler.
func (d *Dispatcher) Register(kind string, handler HandlerFunc) {
	d.handlers[kind] = handler
}

// Dispatch looks up and runs the handler for env.Type. Unknown kinds are
// logged and ignored without a reply, per spec §4.1.
func (d *Dispatcher) Dispatch(w io.Writer, env *Envelope) {
	handler, ok := d.handlers[env.Type]
	if !ok {
		logging.Infof("dispatcher: ignoring unknown message type %q", env.Type)
		return
	}
	if err := handler(w, env); err != nil {
		logging.Errorf("dispatcher: handler for %q failed: %v", env.Type, err)
	}
}
