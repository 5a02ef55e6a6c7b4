// Package transport provides the uniform byte-channel abstraction
// (§4.3) over which frames are written and read, with three concrete
// implementations: a direct wired serial link, a wireless serial link to
// a radio module, and a UDP tunnel through a third-party application.
//
// The transport is the only component allowed to touch OS I/O (§5); a
// per-transport mutex serializes writes, and reads happen on a private
// goroutine that feeds a caller-supplied callback.
package transport

import "time"

// Transport is the capability set every concrete transport presents
// (Design Notes §9: "Polymorphic transport").
type Transport interface {
	// Write sends bytes, totally ordered with respect to other Write
	// calls on this transport.
	Write(data []byte) error
	// Close releases the transport. Idempotent.
	Close() error
}

// ReadyReadFunc is invoked with newly received bytes. It must not block;
// transports invoke it from their private read goroutine.
type ReadyReadFunc func(data []byte)

const (
	// DirectWiredBaud is the baud rate used talking straight to the
	// vehicle over a wired serial link.
	DirectWiredBaud = 115200
	// RadioSerialBaud is the baud rate used talking to the radio module.
	RadioSerialBaud = 57600
	// KeepaliveInterval is how often the UDP tunnel sends a subscription
	// keepalive datagram.
	KeepaliveInterval = 400 * time.Millisecond
)
