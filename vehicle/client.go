// Package vehicle is the public entry point: a single Client type
// composing the transport, framer, and session layers behind the
// command surface described in §6.1, and driving the two periodic
// ticks described in §5.
package vehicle

import (
	"fmt"
	"sync"
	"time"

	"github.com/librescoot/vehicle-link/internal/events"
	"github.com/librescoot/vehicle-link/internal/framer"
	"github.com/librescoot/vehicle-link/internal/session"
	"github.com/librescoot/vehicle-link/internal/transport"
)

const (
	sessionTickInterval = 100 * time.Millisecond // 10 Hz
	controlTickInterval = 20 * time.Millisecond  // 50 Hz
)

// Client is the core library entry point: one instance drives one
// vehicle connection at a time (§2 "System overview").
type Client struct {
	session *session.Session
	bus     *events.Bus

	sessionTicker *time.Ticker
	controlTicker *time.Ticker
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// New creates a Client and starts its session/control tickers. The
// Client is created Idle; call one of the Open* methods or Enumerate to
// begin a connection.
func New() *Client {
	bus := events.New()
	c := &Client{
		session:       session.New(bus),
		bus:           bus,
		sessionTicker: time.NewTicker(sessionTickInterval),
		controlTicker: time.NewTicker(controlTickInterval),
		stopChan:      make(chan struct{}),
	}
	go c.tickLoop()
	return c
}

func (c *Client) tickLoop() {
	defer c.sessionTicker.Stop()
	defer c.controlTicker.Stop()
	for {
		select {
		case <-c.stopChan:
			return
		case <-c.sessionTicker.C:
			c.session.Tick()
		case <-c.controlTicker.C:
			c.session.ControlTick()
		}
	}
}

// OpenWired opens a direct wired serial connection to the vehicle
// (§6.1 "open(port, wireless=false, config=false)").
func (c *Client) OpenWired(port string, config bool) error {
	f := framer.New(framer.Wired)
	t, err := transport.OpenSerial(port, transport.DirectWiredBaud, true, c.session.OnReceive)
	if err != nil {
		return fmt.Errorf("open wired: %w", err)
	}
	if err := c.session.OpenWired(t, f, config); err != nil {
		t.Close()
		return err
	}
	return nil
}

// OpenWireless opens a wireless connection to the vehicle through a
// radio module attached at port, on the given channel and address
// (§6.1 "open(port, address, channel, config=false)").
func (c *Client) OpenWireless(port string, address uint64, channel uint8, config bool) error {
	f := framer.New(framer.Radio)
	t, err := transport.OpenSerial(port, transport.RadioSerialBaud, false, c.session.OnReceive)
	if err != nil {
		return fmt.Errorf("open wireless: %w", err)
	}
	if err := c.session.OpenWireless(t, f, address, channel, config); err != nil {
		t.Close()
		return err
	}
	return nil
}

// OpenUDPTunnel opens a UDP tunnel to a third-party application relaying
// the vehicle's serial byte stream, always in config mode (§6.1 "open(host,
// udpPort)"). The relayed application may forward either wire dialect
// over the same tunnel (e.g. a wireless vehicle's frames, §6.3), so both
// a wired and a radio framer are wired in and selected per frame.
func (c *Client) OpenUDPTunnel(host string, udpPort int) error {
	f := framer.New(framer.Wired)
	radioFramer := framer.New(framer.Radio)
	onBeacon := func(raw []byte) {
		c.bus.EmitRawFrame(events.RawFrame{Direction: events.Incoming, Data: raw})
	}
	t, err := transport.OpenUDPTunnel(host, udpPort, true, c.session.OnReceive, onBeacon)
	if err != nil {
		return fmt.Errorf("open udp tunnel: %w", err)
	}
	if err := c.session.OpenUDPTunnel(t, f, radioFramer); err != nil {
		t.Close()
		return err
	}
	return nil
}

// Enumerate opens a wireless connection on port and sweeps every radio
// channel looking for vehicles, reporting each via a VehicleFound event
// (§6.1 "enumerate(port)").
func (c *Client) Enumerate(port string) error {
	f := framer.New(framer.Radio)
	t, err := transport.OpenSerial(port, transport.RadioSerialBaud, false, c.session.OnReceive)
	if err != nil {
		return fmt.Errorf("open enumerate: %w", err)
	}
	if err := c.session.Enumerate(t, f); err != nil {
		t.Close()
		return err
	}
	return nil
}

// Close tears down the active connection, returns to Idle, and stops
// the session/control tickers (§6.1 "close()"; §5 "destruction cancels
// the periodic ticks"). Idempotent.
func (c *Client) Close() {
	c.session.Close()
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

// SetControls updates the eight public 0..100 control inputs (§6.1
// "setControls(c0..c7)").
func (c *Client) SetControls(c0, c1, c2, c3, c4, c5, c6, c7 uint8) error {
	return c.session.SetControls(c0, c1, c2, c3, c4, c5, c6, c7)
}

// StreamTelemetry toggles the telemetry subscription (§6.1
// "streamTelemetry(enable)").
func (c *Client) StreamTelemetry(enable bool) {
	c.session.StreamTelemetry(enable)
}

// EnterBypass switches a connected wired, non-config vehicle into
// bypass (direct motor-speed) control mode (§6.1 "enterBypass").
func (c *Client) EnterBypass() error {
	return c.session.EnterBypass()
}

// LeaveBypass switches a connected wired, non-config vehicle out of
// bypass mode (§6.1 "leaveBypass").
func (c *Client) LeaveBypass() error {
	return c.session.LeaveBypass()
}

// ArmHeli arms a connected wired, non-config vehicle (§6.1 "armHeli").
func (c *Client) ArmHeli() error {
	return c.session.ArmHeli()
}

// DisarmHeli disarms a connected wired, non-config vehicle (§6.1
// "disarmHeli").
func (c *Client) DisarmHeli() error {
	return c.session.DisarmHeli()
}

// State reports the current connection state.
func (c *Client) State() session.State {
	return c.session.State()
}

// Events returns the event bus publishing raw frames, state changes,
// vehicle discoveries, telemetry, and IMU samples (§4.7).
func (c *Client) Events() *events.Bus {
	return c.bus
}
