// Package session implements the connection state machine driving
// enumeration, the wireless connect handshake, telemetry subscription
// keepalive, alarm acknowledgement, and the control-tick multiplexer
// (§3.1, §4.5). It is the only package that decides *when* to send a
// message; internal/message decides *how one is shaped*.
package session

import (
	"errors"
	"sync"

	"github.com/librescoot/vehicle-link/internal/events"
	"github.com/librescoot/vehicle-link/internal/framer"
	"github.com/librescoot/vehicle-link/internal/message"
	"github.com/librescoot/vehicle-link/internal/radio"
	"github.com/librescoot/vehicle-link/internal/transport"
)

// State is one of the session's four tagged states (§3.1 "Session state").
type State int

const (
	Idle State = iota
	Enumerating
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Enumerating:
		return "Enumerating"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

var (
	ErrNotIdle        = errors.New("session: not idle")
	ErrInvalidChannel = errors.New("session: channel out of range [0xC, 0x17]")
	ErrNotConnected   = errors.New("session: not connected")
	ErrWrongMode      = errors.New("session: operation requires wired, non-config mode")
	ErrNoTransport    = errors.New("session: no transport open")
	ErrInvalidControl = errors.New("session: control input out of range [0, 100]")
)

const (
	firstChannel = 0x0C
	lastChannel  = 0x17

	enumAttemptsPerChannel = 3
	connectTimeoutTicks    = 100
	acquireTickModulus     = 2
	queryAfterTicks        = 10
	telemetryRenewTicks    = 10

	broadcastAddress = 0x000000000000FFFF
)

// writer abstracts the two ways a session emits bytes: a raw transport
// write (wired/UDP) or a chunked radio-addressed transmit (wireless).
// Every frame actually written is also published on the event bus.
type writer struct {
	transport transport.Transport
	bus       *events.Bus
	wireless  bool
	remote    uint64
}

func (w *writer) send(data []byte) {
	if w.transport == nil || data == nil {
		return
	}
	if w.wireless {
		for _, chunk := range radio.AddressedTransmit(w.remote, data) {
			w.transport.Write(chunk)
			w.bus.EmitRawFrame(events.RawFrame{Direction: events.Outgoing, Data: chunk})
		}
		return
	}
	w.transport.Write(data)
	w.bus.EmitRawFrame(events.RawFrame{Direction: events.Outgoing, Data: data})
}

// sendRaw writes data directly, without radio addressing, even on a
// wireless transport (used for local radio-module AT commands, which are
// never addressed to the vehicle).
func (w *writer) sendRaw(data []byte) {
	if w.transport == nil || data == nil {
		return
	}
	w.transport.Write(data)
	w.bus.EmitRawFrame(events.RawFrame{Direction: events.Outgoing, Data: data})
}

// Session holds the connection parameters and discovered/mutable state
// for one active (or idle) connection (§3.1 "Connection parameters",
// "Local module state").
type Session struct {
	mu sync.Mutex

	state State

	transport transport.Transport
	framer    *framer.Framer
	// udpRadioFramer is only set for a UDP tunnel connection. A relayed
	// application can forward either dialect over the same tunnel
	// (§4.3, §6.3), so inbound UDP frames are dispatched by their own
	// leading byte rather than by the fixed per-session dialect used for
	// direct serial connections.
	udpRadioFramer *framer.Framer
	bus            *events.Bus

	// Connection parameters: immutable for the lifetime of a session
	// (§3.2 "never mutated while the session is not Idle").
	wireless   bool
	configMode bool
	channel    uint8
	remote     uint64

	// Local module state (wireless only).
	localAddrLow  uint32
	localAddrHigh uint32
	haveLow       bool
	haveHigh      bool
	localAddr     uint64

	// Enumeration state.
	enumAttempt int
	seenAddrs   map[uint64]bool

	// Connecting state.
	connectAttempt int
	iter           int

	// Connected state.
	throttleMode    int // -1 = unknown, 0 or 1 once known
	streamTelemetry bool
	bypassMode      bool

	// Control multiplexer state (§4.5.1).
	controlsInterval int
	channels         [16]int16
	motors           [8]uint16
}

// New creates a Session in the Idle state.
func New(bus *events.Bus) *Session {
	return &Session{
		state:        Idle,
		bus:          bus,
		throttleMode: -1,
		seenAddrs:    make(map[uint64]bool),
	}
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(next State) {
	s.state = next
	s.bus.EmitStateChange(events.StateChange{State: int(next)})
}

func (s *Session) writer() *writer {
	return &writer{transport: s.transport, bus: s.bus, wireless: s.wireless, remote: s.remote}
}

// resetDiscovered clears every piece of state the vehicle taught us,
// per §3.3 "close() ... zeroes discovered state".
func (s *Session) resetDiscovered() {
	s.localAddr = 0
	s.localAddrLow = 0
	s.localAddrHigh = 0
	s.haveLow = false
	s.haveHigh = false
	s.throttleMode = -1
	s.bypassMode = false
	s.connectAttempt = 0
	s.iter = 0
	s.controlsInterval = 0
}

// OpenWired attaches t as a direct wired (or config-only) transport and
// transitions from Idle to Connecting (§4.5 "Wired" path, §6.1).
func (s *Session) OpenWired(t transport.Transport, f *framer.Framer, config bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return ErrNotIdle
	}
	s.transport = t
	s.framer = f
	s.wireless = false
	s.configMode = config
	s.resetDiscovered()
	s.setState(Connecting)
	return nil
}

// OpenWireless attaches t as a wireless (radio-module) transport and
// transitions from Idle to Connecting, after requesting the radio
// channel (§4.5 "Wireless" path).
func (s *Session) OpenWireless(t transport.Transport, f *framer.Framer, remote uint64, channel uint8, config bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return ErrNotIdle
	}
	if channel < firstChannel || channel > lastChannel {
		return ErrInvalidChannel
	}
	s.transport = t
	s.framer = f
	s.wireless = true
	s.configMode = config
	s.remote = remote
	s.channel = channel
	s.resetDiscovered()
	s.setState(Connecting)
	s.writer().sendRaw(radio.SetChannel(channel))
	return nil
}

// OpenUDPTunnel attaches t as a UDP tunnel transport. The tunnel always
// operates in config mode, since it relays an already-running
// application's own connection (§3.3, "open(host, udpPort)"). radioFramer
// handles any radio-dialect frames the relayed application forwards
// alongside the wired dialect (§4.3, §6.3).
func (s *Session) OpenUDPTunnel(t transport.Transport, f, radioFramer *framer.Framer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return ErrNotIdle
	}
	s.transport = t
	s.framer = f
	s.udpRadioFramer = radioFramer
	s.wireless = false
	s.configMode = true
	s.resetDiscovered()
	s.setState(Connecting)
	return nil
}

// Enumerate attaches t as a wireless transport and starts a channel
// sweep (§4.5 "Enumerating").
func (s *Session) Enumerate(t transport.Transport, f *framer.Framer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return ErrNotIdle
	}
	s.transport = t
	s.framer = f
	s.wireless = true
	s.remote = broadcastAddress
	s.channel = firstChannel
	s.enumAttempt = 0
	s.seenAddrs = make(map[uint64]bool)
	s.setState(Enumerating)
	s.writer().sendRaw(radio.SetChannel(s.channel))
	return nil
}

// Close releases the transport, drops bypass mode if applicable,
// resets discovered state, and returns to Idle. Idempotent (§3.3, §5
// "close() is the single cancellation primitive").
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.state == Idle {
		return
	}
	if s.state == Connected && !s.wireless && !s.configMode {
		s.writer().send(message.BuildConfigMessage(6, 0, 0, nil))
	}
	if s.transport != nil {
		s.transport.Close()
	}
	s.transport = nil
	s.framer = nil
	s.udpRadioFramer = nil
	s.resetDiscovered()
	s.setState(Idle)
}

// Tick drives the 10 Hz session tick: enumeration sweep advancement,
// the wireless connect handshake, EEPROM/telemetry bookkeeping while
// Connected, and timeout-driven closes (§4.5, §5 "Timeouts"). Alarm
// acknowledgements are sent from OnReceive as alarms arrive.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iter++
	switch s.state {
	case Idle:
		// No activity.
	case Enumerating:
		s.tickEnumerating()
	case Connecting:
		s.tickConnecting()
	case Connected:
		s.tickConnected()
	}
}

func (s *Session) tickEnumerating() {
	if s.enumAttempt%enumAttemptsPerChannel == enumAttemptsPerChannel-1 {
		s.channel++
		if s.channel > lastChannel {
			s.closeLocked()
			s.enumAttempt++
			return
		}
		s.writer().sendRaw(radio.SetChannel(s.channel))
	} else {
		s.writer().send(message.IdentifyRequest())
	}
	s.enumAttempt++
}

func (s *Session) tickConnecting() {
	if s.connectAttempt > connectTimeoutTicks {
		s.closeLocked()
		return
	}
	s.connectAttempt++
	if s.wireless {
		if s.localAddr == 0 {
			s.writer().sendRaw(radio.RequestAddressHalf(s.haveLow))
			return
		}
		if s.iter%acquireTickModulus == 0 {
			s.writer().send(message.Acquire(s.localAddr, s.configMode))
		} else if s.connectAttempt > queryAfterTicks {
			s.writer().send(message.Query())
		}
		return
	}
	// Wired: no handshake, straight to Connected (§4.5 "Wired").
	s.setState(Connected)
}

func (s *Session) tickConnected() {
	if s.throttleMode < 0 && (s.wireless || s.configMode) {
		s.writer().send(message.BuildConfigMessage(2, 16, 0, nil))
	}
	if s.streamTelemetry && s.iter%telemetryRenewTicks == 0 {
		s.writer().send(message.BuildConfigMessage(1, 22, 1, nil))
	}
}

// ControlTick drives the independent 50 Hz control tick: the wireless
// round-robin, the wired-bypass motor frame, or the config-mode control
// frame, depending on connection parameters (§4.5.1).
func (s *Session) ControlTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Connected {
		return
	}
	switch {
	case s.wireless && !s.configMode:
		s.controlsInterval = (s.controlsInterval + 1) % 5
		frame := message.BuildWirelessControlFrame(s.controlsInterval, s.channels)
		if frame != nil {
			s.writer().send(frame)
		}
	case !s.wireless && !s.configMode && s.bypassMode:
		s.writer().send(message.BuildBypassMotorFrame(s.motors))
	case s.configMode:
		s.writer().send(message.BuildConfigControlFrame(s.channels))
	}
}

// SetControls updates the commanded control values under the session
// lock, so ControlTick always reads them as a group (§3.1 "Controls",
// §5). The channel array is recomputed only when the connection is
// wireless or config mode and the throttle mode is already known; the
// motor array only when the connection is wired and not config mode.
// Inputs given outside those conditions leave the respective array
// unchanged.
func (s *Session) SetControls(c0, c1, c2, c3, c4, c5, c6, c7 uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := [8]uint8{c0, c1, c2, c3, c4, c5, c6, c7}
	for _, v := range c {
		if v > 100 {
			return ErrInvalidControl
		}
	}
	if s.throttleMode >= 0 && (s.wireless || s.configMode) {
		s.channels = message.MapControls(c, s.throttleMode != 0)
	}
	if !s.wireless && !s.configMode {
		s.motors = message.MapMotors(c)
	}
	return nil
}

// StreamTelemetry toggles the telemetry subscription, sending the
// initial (or stop) request immediately (§3.1 "Telemetry subscription
// flag", §4.6 "streamTelemetry(enable)").
func (s *Session) StreamTelemetry(enable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamTelemetry = enable
	mode := byte(0)
	if enable {
		mode = 1
	}
	s.writer().send(message.BuildConfigMessage(1, 22, mode, nil))
}

// requireConnectedWiredBypass enforces the common precondition of
// EnterBypass/LeaveBypass/ArmHeli/DisarmHeli (§6.1: "Connected, wired,
// not config").
func (s *Session) requireConnectedWiredBypass() error {
	if s.state != Connected {
		return ErrNotConnected
	}
	if s.wireless || s.configMode {
		return ErrWrongMode
	}
	return nil
}

// EnterBypass switches the vehicle into wired bypass (motor-speed)
// control mode.
func (s *Session) EnterBypass() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnectedWiredBypass(); err != nil {
		return err
	}
	s.writer().send(message.BuildConfigMessage(6, 0, 1, nil))
	s.bypassMode = true
	return nil
}

// LeaveBypass switches the vehicle back out of wired bypass mode.
func (s *Session) LeaveBypass() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnectedWiredBypass(); err != nil {
		return err
	}
	s.writer().send(message.BuildConfigMessage(6, 0, 0, nil))
	s.bypassMode = false
	return nil
}

// ArmHeli sends the arm command.
func (s *Session) ArmHeli() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnectedWiredBypass(); err != nil {
		return err
	}
	s.writer().send(message.BuildConfigMessage(6, 2, 1, nil))
	return nil
}

// DisarmHeli sends the disarm command.
func (s *Session) DisarmHeli() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConnectedWiredBypass(); err != nil {
		return err
	}
	s.writer().send(message.BuildConfigMessage(6, 3, 1, nil))
	return nil
}

// OnReceive feeds newly arrived bytes through the framer, dispatching
// every validated frame by dialect (§4.5 "Connecting"/"Connected",
// §4.6, §4.7 "every valid inbound frame... is published"). Over a UDP
// tunnel the relayed application can forward either dialect, so each
// chunk is routed by its own leading byte instead of the session's
// fixed dialect (§4.3, §6.3).
func (s *Session) OnReceive(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.framer == nil {
		return
	}
	if s.udpRadioFramer != nil && len(data) > 0 && data[0] == 0x7E {
		s.udpRadioFramer.Feed(data)
		for {
			frame, ok := s.udpRadioFramer.Next()
			if !ok {
				return
			}
			s.bus.EmitRawFrame(events.RawFrame{Direction: events.Incoming, Data: frame.Raw})
			s.handleRadioFrame(frame.Raw)
		}
	}
	s.framer.Feed(data)
	for {
		frame, ok := s.framer.Next()
		if !ok {
			return
		}
		s.bus.EmitRawFrame(events.RawFrame{Direction: events.Incoming, Data: frame.Raw})
		if s.wireless {
			s.handleRadioFrame(frame.Raw)
		} else {
			s.handleWiredFrame(frame.Raw)
		}
	}
}

// handleRadioFrame dispatches a validated radio-module frame (payload
// is frame.Raw[3 : len-1], between the length field and the checksum).
func (s *Session) handleRadioFrame(raw []byte) {
	payload := raw[3 : len(raw)-1]
	received := radio.Parse(payload)
	switch received.Type {
	case radio.Receive64:
		s.handleVehiclePayload(received.Source, received.Payload)
	case radio.ATResponse:
		s.handleATResponse(received)
	case radio.ModuleStatus:
		if received.StatusByte == 0 {
			s.writer().sendRaw(radio.SetChannel(s.channel))
		}
	}
}

func (s *Session) handleATResponse(r radio.Received) {
	if r.Status != 0 {
		return
	}
	switch {
	case r.IsLow:
		s.localAddrLow = r.Value
		s.haveLow = true
	case r.IsHigh && s.haveLow:
		s.localAddrHigh = r.Value
		s.localAddr = uint64(s.localAddrHigh)<<32 | uint64(s.localAddrLow)
	}
}

// handleVehiclePayload dispatches a vehicle-layer payload carried inside
// a radio-module 64-bit-addressed receive, covering enumeration
// responses, the connect query response, alarm acks, and forwarded
// config messages (§4.5 "Enumerating"/"Connecting"/"Connected").
func (s *Session) handleVehiclePayload(source uint64, payload []byte) {
	if len(payload) == 0 {
		return
	}
	switch {
	case s.state == Enumerating && payload[0] == 0xF8:
		if len(payload) > 17 && !s.seenAddrs[source] {
			s.seenAddrs[source] = true
			s.bus.EmitVehicleFound(events.VehicleFound{Address: source, Channel: payload[17] + firstChannel})
		}
	case s.state == Connecting && source == s.remote && payload[0] == 0x01:
		s.setState(Connected)
	case s.state == Connected && source == s.remote && payload[0] == 0x03:
		if len(payload) > 14 && payload[14] != 0 {
			s.writer().send(message.AlarmAck())
		}
	case s.state == Connected && (source == s.remote || s.udpRadioFramer != nil) && payload[0] == 0xFF:
		// A UDP tunnel has no remote address of its own, so config
		// messages relayed inside radio frames are taken from any source.
		s.dispatchConfigMessage(payload)
	}
}

// handleWiredFrame dispatches a validated wired-dialect frame, which is
// always itself a configuration message (§4.5.3).
func (s *Session) handleWiredFrame(raw []byte) {
	s.dispatchConfigMessage(raw)
}

// dispatchConfigMessage parses a configuration message and dispatches it
// by type/subtype. raw is copied before parsing since ParseConfigMessage
// decrypts in place and raw may alias an already-published RawFrame's
// backing array (§4.7 requires the published frame to stay exactly as it
// appeared on the wire).
func (s *Session) dispatchConfigMessage(raw []byte) {
	cfg, ok := message.ParseConfigMessage(append([]byte(nil), raw...))
	if !ok {
		return
	}
	switch {
	case cfg.Type == 2 && cfg.SubType == 16:
		if mode, ok := message.DecodeThrottleMode(cfg.Body); ok {
			if mode {
				s.throttleMode = 1
			} else {
				s.throttleMode = 0
			}
		}
	case cfg.Type == 1 && cfg.SubType == 22:
		if t, ok := message.DecodeTelemetry22(cfg.Body); ok {
			s.bus.EmitTelemetry22(t)
		}
		if !s.streamTelemetry {
			s.writer().send(message.BuildConfigMessage(1, 22, 0, nil))
		}
	case cfg.Type == 1 && cfg.SubType == 23:
		if t, ok := message.DecodeTelemetry23(cfg.Body); ok {
			s.bus.EmitTelemetry23(t)
		}
		if !s.streamTelemetry {
			s.writer().send(message.BuildConfigMessage(1, 22, 0, nil))
		}
	case cfg.Type == 6 && cfg.SubType == 0:
		if imu, ok := message.DecodeBypassIMU(cfg.Body); ok {
			s.bus.EmitIMU(imu)
		}
	}
}
