package transport

import (
	"fmt"
	"sync"

	"go.bug.st/serial"
)

// SerialTransport is a byte channel over a wired serial port, used both
// for the direct wired link to the vehicle and for the wireless link to
// the radio module (they differ only in baud rate and DTR policy).
type SerialTransport struct {
	mu     sync.Mutex
	port   serial.Port
	onRead ReadyReadFunc

	closeOnce sync.Once
	closed    chan struct{}
}

// OpenSerial opens portName at baud 8N1 with no flow control. dtr is
// asserted only for the direct wired mode (§4.3); onRead is invoked from a
// private goroutine for every chunk of bytes read.
func OpenSerial(portName string, baud int, dtr bool, onRead ReadyReadFunc) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	if err := port.SetDTR(dtr); err != nil {
		port.Close()
		return nil, fmt.Errorf("set DTR on %s: %w", portName, err)
	}

	t := &SerialTransport{
		port:   port,
		onRead: onRead,
		closed: make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *SerialTransport) readLoop() {
	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			// go.bug.st/serial returns (0, nil) once the port is closed.
			select {
			case <-t.closed:
				return
			default:
			}
			continue
		}
		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		if t.onRead != nil {
			t.onRead(chunk)
		}
	}
}

// Write sends data over the serial port.
func (t *SerialTransport) Write(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.closed:
		return fmt.Errorf("write to closed serial transport")
	default:
	}
	_, err := t.port.Write(data)
	if err != nil {
		return fmt.Errorf("write serial: %w", err)
	}
	return nil
}

// Close releases the serial port. Idempotent.
func (t *SerialTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		t.mu.Lock()
		defer t.mu.Unlock()
		err = t.port.Close()
	})
	return err
}
