package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/librescoot/vehicle-link/internal/codec"
)

const (
	udpStart          = 0xDF
	udpTypeBeacon     = 0x00
	udpTypeEcho       = 0x10
	udpEchoIncoming   = 0x01
	udpEchoOutgoing   = 0x02
	udpOutboundCmd    = 0x12
	keepalivePassive  = 0x13
	keepaliveActive   = 0x15
)

// UDPTunnel forwards the vehicle's serial byte stream as UDP datagrams
// through a third-party application (§4.3, §6.2). Unlike the serial
// transports it understands a thin envelope of its own: it unwraps echoed
// messages before handing them to onRead, and reports presence beacons
// separately via onBeacon since they are not vehicle frames.
type UDPTunnel struct {
	mu      sync.Mutex
	conn    *net.UDPConn
	onRead  ReadyReadFunc
	onBeacon func(raw []byte)
	active  bool

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// OpenUDPTunnel dials host:udpPort and starts the 400ms keepalive timer.
// active selects whether the keepalive marks an active (0x15) or passive
// (0x13) subscription.
func OpenUDPTunnel(host string, udpPort int, active bool, onRead ReadyReadFunc, onBeacon func(raw []byte)) (*UDPTunnel, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(host), Port: udpPort}
	if addr.IP == nil {
		resolved, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, udpPort))
		if err != nil {
			return nil, fmt.Errorf("resolve udp host %s: %w", host, err)
		}
		addr = resolved
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp tunnel %s:%d: %w", host, udpPort, err)
	}

	t := &UDPTunnel{
		conn:     conn,
		onRead:   onRead,
		onBeacon: onBeacon,
		active:   active,
		closed:   make(chan struct{}),
	}
	t.wg.Add(2)
	go t.readLoop()
	go t.keepaliveLoop()
	return t, nil
}

func (t *UDPTunnel) readLoop() {
	defer t.wg.Done()
	buf := make([]byte, 2048)
	for {
		n, err := t.conn.Read(buf)
		if err != nil {
			return
		}
		t.handleDatagram(append([]byte(nil), buf[:n]...))
	}
}

func (t *UDPTunnel) handleDatagram(data []byte) {
	if len(data) < 5 || data[0] != udpStart {
		return
	}
	length := int(data[1])<<8 | int(data[2])
	if length+4 > len(data) {
		return
	}
	if !codec.VerifyChecksum(data[3 : 3+length+1]) {
		return
	}
	typ := data[3] & 0xF0
	mode := data[3] & 0x0F
	switch typ {
	case udpTypeBeacon:
		if t.onBeacon != nil {
			t.onBeacon(data)
		}
	case udpTypeEcho:
		inner := unwrapEchoed(data, length)
		if inner == nil {
			return
		}
		if mode == udpEchoIncoming || mode == udpEchoOutgoing {
			if t.onRead != nil {
				t.onRead(inner)
			}
		}
	}
}

// unwrapEchoed strips the UDP envelope from an echoed message, using the
// inner message's own length field to determine how much of the body to
// keep (grounded on original_source/com/remotecontroller.cpp onReadyRead).
func unwrapEchoed(data []byte, length int) []byte {
	body := data[4:]
	if len(body) == 0 {
		return nil
	}
	switch {
	case body[0] == 0x7E && length >= 4:
		innerLen := int(body[1])<<8 | int(body[2])
		end := 4 + innerLen
		if end > len(body) {
			return nil
		}
		return body[:end]
	case (body[0] == 0xFF || body[0] == 0xFE) && length >= 6:
		innerLen := int(body[2])<<8 | int(body[3])
		end := 6 + innerLen
		if end > len(body) {
			return nil
		}
		return body[:end]
	default:
		return body
	}
}

func (t *UDPTunnel) keepaliveLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
			t.sendKeepalive()
		}
	}
}

func (t *UDPTunnel) sendKeepalive() {
	typ := byte(keepalivePassive)
	if t.active {
		typ = keepaliveActive
	}
	datagram := make([]byte, 5)
	datagram[0] = udpStart
	datagram[1] = 0
	datagram[2] = 1
	datagram[3] = typ
	datagram[4] = codec.Checksum(datagram[3:4])
	t.writeDatagram(datagram)
}

// Write wraps payload as an outbound command datagram (0xDF | len+1 | 0x12
// | payload | checksum) and sends it.
func (t *UDPTunnel) Write(payload []byte) error {
	datagram := make([]byte, 0, len(payload)+5)
	datagram = append(datagram, udpStart, 0, 0, udpOutboundCmd)
	outLen := len(payload) + 1
	datagram[1] = byte(outLen >> 8)
	datagram[2] = byte(outLen)
	datagram = append(datagram, payload...)
	datagram = append(datagram, codec.Checksum(datagram[3:]))
	return t.writeDatagram(datagram)
}

func (t *UDPTunnel) writeDatagram(datagram []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.closed:
		return fmt.Errorf("write to closed udp tunnel")
	default:
	}
	_, err := t.conn.Write(datagram)
	if err != nil {
		return fmt.Errorf("write udp tunnel: %w", err)
	}
	return nil
}

// Close releases the UDP socket. Idempotent.
func (t *UDPTunnel) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		t.mu.Lock()
		err = t.conn.Close()
		t.mu.Unlock()
		t.wg.Wait()
	})
	return err
}
