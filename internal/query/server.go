// Package query answers server queries for an advertised host and keeps the
// answered state in step with what the host publishes to the directory.
package query

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/proto"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/proto/a2s"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/proto/sqp"
	"github.com/sirupsen/logrus"
)

type (
	// Server is a UDP endpoint which responds to server queries.
	Server struct {
		conn      *net.UDPConn
		responder proto.QueryResponder
		logger    *logrus.Entry
		done      chan struct{}
		wg        sync.WaitGroup
	}
)

// ErrUnknownProtocol is returned for a query protocol other than a2s or sqp.
var ErrUnknownProtocol = errors.New("unknown query protocol")

// NewResponder returns the responder for protocol answering from state.
func NewResponder(protocol string, state *proto.StateHolder, appID int16) (proto.QueryResponder, error) {
	switch protocol {
	case "a2s":
		return a2s.NewQueryResponder(state, appID)
	case "sqp":
		return sqp.NewQueryResponder(state)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, protocol)
	}
}

// Listen binds addr and serves queries with q until Close.
func Listen(addr string, q proto.QueryResponder, logger *logrus.Entry) (*Server, error) {
	address, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp4", address)
	if err != nil {
		return nil, err
	}

	s := &Server{
		conn:      conn,
		responder: q,
		logger:    logger.WithField("queryport", conn.LocalAddr().String()),
		done:      make(chan struct{}),
	}

	s.wg.Add(1)
	go s.serve()

	return s, nil
}

// LocalAddr returns the bound address.
func (s *Server) LocalAddr() netip.AddrPort {
	return s.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Close stops serving and waits for the read loop to exit.
func (s *Server) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}

	close(s.done)
	err := s.conn.Close()
	s.wg.Wait()

	return err
}

func (s *Server) isDone() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// serve handles responding to query commands on the bound port.
func (s *Server) serve() {
	defer s.wg.Done()

	buf := make([]byte, a2s.MaxPacketSize)

	for {
		n, to, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if s.isDone() {
				return
			}

			s.logger.
				WithField("error", err.Error()).
				Error("read from udp")

			continue
		}

		resp, err := s.responder.Respond(to.String(), buf[:n])
		if err != nil {
			s.logger.
				WithField("error", err.Error()).
				Debug("error responding to query")

			continue
		}

		if err = s.conn.SetWriteDeadline(time.Now().Add(1 * time.Second)); err != nil {
			s.logger.
				WithField("error", err.Error()).
				Error("error setting write deadline")

			continue
		}

		if _, err = s.conn.WriteTo(resp, to); err != nil {
			s.logger.
				WithField("error", err.Error()).
				Error("error writing response")
		}
	}
}
