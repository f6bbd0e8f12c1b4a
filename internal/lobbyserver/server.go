// Package lobbyserver implements the player-facing TCP listener (spec
// §2, §6): authentication, browsing, reviews, downloads, room lifecycle,
// start game. Connection lifecycle is grounded on the teacher's
// Client/readPump/writePump pattern (cmd/server/main.go), rewired from a
// WebSocket upgrade onto a raw net.Conn carrying the length-prefixed JSON
// frames of internal/protocol, since spec §4.1 mandates that framing
// directly rather than a websocket subprotocol.
package lobbyserver

import (
	"errors"
	"net"
	"sync"

	"lobbyplatform/internal/catalog"
	"lobbyplatform/internal/logging"
	"lobbyplatform/internal/presence"
	"lobbyplatform/internal/protocol"
	"lobbyplatform/internal/room"
	"lobbyplatform/internal/session"
	"lobbyplatform/internal/supervisor"
	"lobbyplatform/internal/transfer"
)

const sendBufferSize = 256

// errSendBufferFull marks a connection too slow to keep up with replies
// (spec §7: I/O errors mid-stream are logged, not surfaced to callers).
var errSendBufferFull = errors.New("lobbyserver: send buffer full")

// Server is the lobby endpoint: a TCP listener plus the shared
// collaborators every connection's handlers dispatch into (spec §2
// "Lobby endpoint").
type Server struct {
	listener net.Listener

	catalog    catalog.Catalog
	rooms      *room.Registry
	transfers  *transfer.Manager
	supervisor *supervisor.Supervisor
	presence   *presence.Mirror
	reconciler *session.Reconciler
	totpIssuer string

	mu       sync.Mutex
	byUser   map[string]*connection
	shutdown bool
}

// Deps bundles the lobby endpoint's shared collaborators.
type Deps struct {
	Catalog    catalog.Catalog
	Rooms      *room.Registry
	Transfers  *transfer.Manager
	Supervisor *supervisor.Supervisor
	Presence   *presence.Mirror
	Reconciler *session.Reconciler
	TOTPIssuer string
}

// New binds the lobby endpoint's listener at addr. Serve must be called
// to begin accepting.
func New(addr string, deps Deps) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener:   l,
		catalog:    deps.Catalog,
		rooms:      deps.Rooms,
		transfers:  deps.Transfers,
		supervisor: deps.Supervisor,
		presence:   deps.Presence,
		reconciler: deps.Reconciler,
		totpIssuer: deps.TOTPIssuer,
		byUser:     make(map[string]*connection),
	}, nil
}

// Addr reports the listener's bound address (useful when the configured
// port is 0, e.g. in tests).
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until the listener is closed by Shutdown.
func (s *Server) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.shutdown
			s.mu.Unlock()
			if closing {
				return
			}
			logging.Warnf("lobbyserver: accept error: %v", err)
			continue
		}
		go s.handle(conn)
	}
}

// Shutdown stops accepting new connections and closes the connection of
// every logged-in user (spec-adjacent to the teacher's Server.Shutdown
// broadcast-then-close sequence). Connections that have not completed
// LOGIN are not tracked and are not closed here.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	conns := make([]*connection, 0, len(s.byUser))
	for _, c := range s.byUser {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.listener.Close()
	for _, c := range conns {
		c.conn.Close()
	}
}

func (s *Server) handle(conn net.Conn) {
	c := &connection{
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		session: session.New(),
		server:  s,
	}
	dispatcher := s.buildDispatcher(c)

	go c.writePump()
	c.readPump(dispatcher)
}

func (s *Server) registerUser(username string, c *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[username] = c
}

func (s *Server) unregisterUser(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byUser[username] != nil {
		delete(s.byUser, username)
	}
}

// connFor looks up a logged-in user's connection for best-effort
// broadcast delivery (spec §4.4 start_game: "Broadcast is best-effort per
// recipient; failure to deliver to one player does not abort the
// others").
func (s *Server) connFor(username string) (*connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byUser[username]
	return c, ok
}

// connection is one accepted socket's lifecycle: a buffered send channel
// drained by writePump, and a serial readPump that decodes and dispatches
// frames (spec §5: "within a single connection, message handling is
// strictly serial").
type connection struct {
	conn    net.Conn
	send    chan []byte
	session *session.Session
	server  *Server
}

// Write implements io.Writer by enqueueing a pre-built frame's bytes onto
// the send channel, so WriteFrame's single Write call becomes one
// buffered, serialized send regardless of which goroutine issued it
// (needed for best-effort broadcast from the START_GAME handler).
func (c *connection) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)
	select {
	case c.send <- buf:
		return len(p), nil
	default:
		return 0, errSendBufferFull
	}
}

func (c *connection) writePump() {
	for data := range c.send {
		if _, err := c.conn.Write(data); err != nil {
			return
		}
	}
}

func (c *connection) readPump(dispatcher *protocol.Dispatcher) {
	defer func() {
		if username, _, _ := c.session.User(); username != "" {
			c.server.unregisterUser(username)
		}
		c.server.reconciler.Reconcile(c.session)
		close(c.send)
		c.conn.Close()
	}()

	for {
		env, err := protocol.ReadFrame(c.conn)
		if err != nil {
			return
		}
		dispatcher.Dispatch(c, env)
	}
}
