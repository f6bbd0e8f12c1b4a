// Package devserver implements the developer-facing TCP listener (spec
// §2, §6): authentication, listing own games, chunked upload/update,
// deletion. Connection lifecycle mirrors internal/lobbyserver (itself
// grounded on the teacher's Client/readPump/writePump pattern); the two
// listeners share a Catalog and TransferManager but never a connection
// registry, since developer and player sessions are independent (spec
// §3: "separate developer account table").
package devserver

import (
	"errors"
	"net"
	"sync"

	"lobbyplatform/internal/catalog"
	"lobbyplatform/internal/logging"
	"lobbyplatform/internal/protocol"
	"lobbyplatform/internal/session"
	"lobbyplatform/internal/transfer"
)

const sendBufferSize = 256

var errSendBufferFull = errors.New("devserver: send buffer full")

// Server is the developer endpoint (spec §2 "Developer endpoint").
type Server struct {
	listener net.Listener

	catalog     catalog.Catalog
	transfers   *transfer.Manager
	reconciler  *session.Reconciler
	storageRoot string

	mu       sync.Mutex
	shutdown bool
	conns    map[*connection]struct{}
}

// Deps bundles the developer endpoint's shared collaborators.
type Deps struct {
	Catalog     catalog.Catalog
	Transfers   *transfer.Manager
	Reconciler  *session.Reconciler
	StorageRoot string
}

// New binds the developer endpoint's listener at addr.
func New(addr string, deps Deps) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener:    l,
		catalog:     deps.Catalog,
		transfers:   deps.Transfers,
		reconciler:  deps.Reconciler,
		storageRoot: deps.StorageRoot,
		conns:       make(map[*connection]struct{}),
	}, nil
}

// Addr reports the listener's bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until Shutdown closes the listener.
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
			logging.Warnf("devserver: accept error: %v", err)
			continue
		}
		go s.handle(conn)
	}
}

// Shutdown stops accepting and disconnects every developer connection.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	conns := make([]*connection, 0, len(s.conns))
	for c := range s.conns {
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

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	dispatcher := s.buildDispatcher(c)

	go c.writePump()
	c.readPump(dispatcher)
}

type connection struct {
	conn    net.Conn
	send    chan []byte
	session *session.Session
	server  *Server
}

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
		c.server.mu.Lock()
		delete(c.server.conns, c)
		c.server.mu.Unlock()
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
