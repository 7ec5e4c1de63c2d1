package server

import (
	"bufio"
	"bytes"
	"net"
	"time"

	"github.com/kanromiku/Industrial-Internet/logger"
	"github.com/kanromiku/Industrial-Internet/parser"
)

// handleConn runs the per-connection loop: frame, parse, project, store,
// publish, until the peer disconnects or a read error occurs. Every
// per-message failure is contained here; only the read path can end the
// connection.
func (s *Server) handleConn(conn net.Conn) {
	addr := conn.RemoteAddr()
	logger.Info("client connected: %s", addr)

	defer func() {
		conn.Close()
		s.untrack(conn)
		logger.Info("connection closed: %s", addr)
	}()

	scanner := bufio.NewScanner(conn)
	// The scanner's token limit is the larger of the initial capacity
	// and the max, so the capacity must not exceed MaxFrameBytes.
	scanner.Buffer(make([]byte, 0, min(64*1024, s.cfg.MaxFrameBytes)), s.cfg.MaxFrameBytes)

	for {
		if s.cfg.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		if !scanner.Scan() {
			break
		}

		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		env, err := parser.ParseLine(line)
		if err != nil {
			logger.Warn("skipping line from %s: %v", addr, err)
			continue
		}

		record, err := s.projectors.Project(env, time.Now().UTC())
		if err != nil {
			logger.Warn("skipping record from %s (device %s): %v", addr, env.DeviceID, err)
			continue
		}

		// Durability first, fan-out second. Neither outcome ends the
		// connection.
		if err := s.store.Store(record); err != nil {
			logger.Error("db insert failed for %s (device %s): %v", addr, record.DeviceID, err)
		}

		if s.publisher != nil {
			if err := s.publisher.Publish(record.DeviceID, record.Payload); err != nil {
				logger.Error("bus publish failed for device %s: %v", record.DeviceID, err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Error("read error from %s: %v", addr, err)
	} else {
		logger.Info("client disconnected: %s", addr)
	}
}
