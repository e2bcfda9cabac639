// Package lan implements the LAN discovery beacon.
//
// A searching client broadcasts a query carrying a nonce. Every host on the
// segment answers by unicast with its session serialized in network byte
// order. Packets are read on a background goroutine and handled on the game
// thread from Tick, so host and search callbacks may touch game thread state.
package lan

import (
	"fmt"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/sirupsen/logrus"
)

type (
	// State is what a beacon is currently used for.
	State uint8

	// SessionFunc returns the session a host advertises, or false to ignore
	// the query.
	SessionFunc func() (online.Session, bool)

	// Config configures a Beacon.
	Config struct {
		// Port is the port hosts listen on and queries are sent to.
		Port int

		// BroadcastAddr is the destination of queries.
		BroadcastAddr string

		// GameID filters out beacons of other games on the segment.
		GameID int32

		// Timeout ends a search.
		Timeout time.Duration
	}

	// Beacon hosts or searches for LAN sessions. A Beacon is owned by the game
	// thread; only its read goroutine runs elsewhere.
	Beacon struct {
		cfg    Config
		logger *logrus.Entry

		binding *udpBinding
		packets chan packet
		wg      sync.WaitGroup
		state   State

		sessionFn SessionFunc

		nonce    uint64
		onResult func(online.Session)
		onDone   func()
		elapsed  time.Duration
	}

	packet struct {
		from netip.AddrPort
		buf  []byte
	}
)

//go:generate go run golang.org/x/tools/cmd/stringer -type=State -output=state_string.go

const (
	NotUsingBeacon State = iota
	Hosting
	Searching
)

// packetBacklog is the number of datagrams buffered between two ticks.
const packetBacklog = 64

// NewBeacon returns an idle beacon.
func NewBeacon(cfg Config, logger *logrus.Entry) *Beacon {
	return &Beacon{
		cfg:    cfg,
		logger: logger,
	}
}

// State returns the current use of the beacon.
func (b *Beacon) State() State {
	return b.state
}

// LocalAddr returns the bound address, or the invalid address when idle.
func (b *Beacon) LocalAddr() netip.AddrPort {
	if b.binding == nil {
		return netip.AddrPort{}
	}

	return b.binding.LocalAddr()
}

// Host starts answering queries with the session returned by fn.
func (b *Beacon) Host(fn SessionFunc) error {
	if b.state != NotUsingBeacon {
		return ErrBeaconInUse
	}

	if err := b.listen(":" + strconv.Itoa(b.cfg.Port)); err != nil {
		return err
	}

	b.state = Hosting
	b.sessionFn = fn

	b.logger.WithField("addr", b.LocalAddr().String()).Info("lan beacon hosting")

	return nil
}

// Search broadcasts a query with nonce. onResult is called for every host
// that answers and onDone once the search times out. Callbacks run from
// Tick.
func (b *Beacon) Search(nonce uint64, onResult func(online.Session), onDone func()) error {
	if b.state != NotUsingBeacon {
		return ErrBeaconInUse
	}

	addr, err := netip.ParseAddr(b.cfg.BroadcastAddr)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidBroadcastAddr, err)
	}

	query, err := Header{
		Platform:   PlatformDesktop,
		GameID:     b.cfg.GameID,
		PacketType: QueryPacket,
		Nonce:      nonce,
	}.Marshal()
	if err != nil {
		return err
	}

	if err = b.listen(":0"); err != nil {
		return err
	}

	to := netip.AddrPortFrom(addr, uint16(b.cfg.Port))
	if _, err = b.binding.Write(query, to); err != nil {
		b.Stop()
		return fmt.Errorf("error sending query: %w", err)
	}

	b.state = Searching
	b.nonce = nonce
	b.onResult = onResult
	b.onDone = onDone
	b.elapsed = 0

	b.logger.
		WithFields(logrus.Fields{
			"to":    to.String(),
			"nonce": nonce,
		}).
		Debug("lan query sent")

	return nil
}

func (b *Beacon) listen(bindAddress string) error {
	binding, err := newUDPBinding(bindAddress)
	if err != nil {
		return fmt.Errorf("error binding %s: %w", bindAddress, err)
	}

	b.binding = binding
	b.packets = make(chan packet, packetBacklog)

	b.wg.Add(1)
	go b.read(binding, b.packets)

	return nil
}

// read forwards datagrams to the game thread until the binding closes.
func (b *Beacon) read(binding *udpBinding, packets chan<- packet) {
	defer b.wg.Done()

	for {
		buf := make([]byte, MaxPacketSize)
		n, from, err := binding.Read(buf)
		if err != nil {
			if binding.IsDone() {
				return
			}

			b.logger.
				WithField("error", err.Error()).
				Error("read from udp")

			continue
		}

		select {
		case packets <- packet{from: from, buf: buf[:n]}:
		default:
			b.logger.WithField("from", from.String()).Warn("lan packet backlog full, dropping packet")
		}
	}
}

// Tick handles the packets received since the last call and advances the
// search timeout.
func (b *Beacon) Tick(elapsed time.Duration) {
drain:
	for b.state != NotUsingBeacon {
		select {
		case p := <-b.packets:
			b.handle(p)
		default:
			break drain
		}
	}

	if b.state != Searching {
		return
	}

	b.elapsed += elapsed
	if b.elapsed < b.cfg.Timeout {
		return
	}

	done := b.onDone
	b.Stop()

	if done != nil {
		done()
	}
}

func (b *Beacon) handle(p packet) {
	h, payload, err := ParseHeader(p.buf)
	if err != nil {
		b.logger.
			WithFields(logrus.Fields{
				"from":  p.from.String(),
				"error": err.Error(),
			}).
			Debug("dropping lan packet")

		return
	}

	if h.GameID != b.cfg.GameID || h.Platform&PlatformDesktop == 0 {
		return
	}

	switch b.state {
	case Hosting:
		if h.PacketType == QueryPacket {
			b.respond(h, p.from)
		}

	case Searching:
		if h.PacketType == ResponsePacket && h.Nonce == b.nonce {
			b.result(payload, p.from)
		}
	}
}

func (b *Beacon) respond(h Header, to netip.AddrPort) {
	s, ok := b.sessionFn()
	if !ok {
		return
	}

	resp, err := EncodeResponse(h, &s)
	if err != nil {
		b.logger.
			WithField("error", err.Error()).
			Error("error encoding lan response")

		return
	}

	if _, err = b.binding.Write(resp, to); err != nil {
		b.logger.
			WithField("error", err.Error()).
			Error("error writing lan response")
	}
}

func (b *Beacon) result(payload []byte, from netip.AddrPort) {
	s, err := DecodeResponse(payload)
	if err != nil {
		b.logger.
			WithFields(logrus.Fields{
				"from":  from.String(),
				"error": err.Error(),
			}).
			Warn("dropping lan response")

		return
	}

	// Hosts advertise the unspecified address; the datagram source is the
	// address reachable from here.
	if !s.Info.HostAddr.Addr().IsValid() || s.Info.HostAddr.Addr().IsUnspecified() {
		s.Info.HostAddr = netip.AddrPortFrom(from.Addr(), s.Info.HostAddr.Port())
	}

	if b.onResult != nil {
		b.onResult(s)
	}
}

// Stop closes the socket and returns the beacon to idle. Packets not yet
// handled are discarded.
func (b *Beacon) Stop() {
	if b.binding == nil {
		return
	}

	b.binding.Close()
	b.wg.Wait()

	b.binding = nil
	b.packets = nil
	b.state = NotUsingBeacon
	b.sessionFn = nil
	b.onResult = nil
	b.onDone = nil
	b.elapsed = 0

	b.logger.Debug("lan beacon stopped")
}
