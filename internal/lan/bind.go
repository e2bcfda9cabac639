package lan

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"
)

type (
	// udpBinding is a managed wrapper for a beacon UDP socket.
	udpBinding struct {
		conn *net.UDPConn
		done chan struct{}
	}
)

var errBindingClosed = errors.New("binding is closed")

// newUDPBinding creates a new UDP binding on the specified address.
func newUDPBinding(bindAddress string) (*udpBinding, error) {
	address, err := net.ResolveUDPAddr("udp4", bindAddress)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp4", address)
	if err != nil {
		return nil, err
	}

	return &udpBinding{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Read reads one datagram into the supplied buffer.
func (b *udpBinding) Read(buf []byte) (int, netip.AddrPort, error) {
	if b.IsDone() {
		return 0, netip.AddrPort{}, errBindingClosed
	}

	n, from, err := b.conn.ReadFromUDPAddrPort(buf)

	return n, netip.AddrPortFrom(from.Addr().Unmap(), from.Port()), err
}

// Write writes one datagram to the specified address.
func (b *udpBinding) Write(buf []byte, to netip.AddrPort) (int, error) {
	if b.IsDone() {
		return 0, errBindingClosed
	}

	if err := b.conn.SetWriteDeadline(time.Now().Add(1 * time.Second)); err != nil {
		return 0, fmt.Errorf("error setting write deadline: %w", err)
	}

	return b.conn.WriteToUDPAddrPort(buf, to)
}

// LocalAddr returns the bound address.
func (b *udpBinding) LocalAddr() netip.AddrPort {
	return b.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Close marks the binding as complete, closing the socket. Blocked reads
// return with an error.
func (b *udpBinding) Close() {
	if b.IsDone() {
		return
	}

	close(b.done)
	b.conn.Close()
}

// IsDone determines whether the binding is complete.
func (b *udpBinding) IsDone() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}
