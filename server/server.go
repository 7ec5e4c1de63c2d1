package server

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/kanromiku/Industrial-Internet/bus"
	"github.com/kanromiku/Industrial-Internet/config"
	"github.com/kanromiku/Industrial-Internet/logger"
	"github.com/kanromiku/Industrial-Internet/projector"
	"github.com/kanromiku/Industrial-Internet/storage"
)

// Server accepts TCP connections carrying newline-delimited JSON
// telemetry and runs one connection handler per client. Handlers share
// the storage manager and the bus publisher; nothing else is shared.
type Server struct {
	cfg        config.ServerConfig
	projectors *projector.Manager
	store      *storage.Manager
	publisher  bus.Publisher // nil when publishing is disabled

	listener net.Listener
	wg       sync.WaitGroup

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool
}

// New creates a server. The publisher may be nil, in which case records
// are stored but not republished.
func New(cfg config.ServerConfig, projectors *projector.Manager, store *storage.Manager, publisher bus.Publisher) *Server {
	return &Server{
		cfg:        cfg,
		projectors: projectors,
		store:      store,
		publisher:  publisher,
		conns:      make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and begins accepting connections
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %v", addr, err)
	}
	s.listener = listener

	logger.Info("TCP server listening on %s", listener.Addr())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the listener address, for callers that bound port 0
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Error("accept failed: %v", err)
			return
		}

		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Stop closes the listener and all open connections, then waits for the
// in-flight connection handlers to finish their current record.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	s.closing = true
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	logger.Info("TCP server stopped")
}

// track registers a connection for shutdown. A connection accepted
// while Stop is closing the others is closed immediately instead of
// being registered, so Stop's wait cannot hang on it.
func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}
