// Package framer turns a raw byte stream into whole frames for either of
// the two wire dialects: the radio-module framing (§4.2 "radio-module
// dialect") and the direct vehicle framing (§4.2 "wired dialect"). It
// tolerates corruption by resyncing one byte at a time, as the teacher's
// pkg/usock state machine does for its own single dialect.
package framer

import (
	"encoding/binary"
	"sync"

	"github.com/librescoot/vehicle-link/internal/codec"
)

// Dialect selects which framing format Feed/Next operate on.
type Dialect int

const (
	// Radio is the radio-module dialect: 0x7E | len:u16 BE | payload | checksum.
	Radio Dialect = iota
	// Wired is the direct vehicle dialect: (0xFF|0xFE) | type | len:u16 BE | payload | crc:u16 LE.
	Wired
)

const (
	radioMinLen = 1
	radioMaxLen = 95
	wiredMaxLen = 200
)

// Frame is a single parsed frame, still in its on-wire representation
// (i.e. exactly the bytes that were written to or read from the
// transport).
type Frame struct {
	Raw []byte
}

// Framer accumulates bytes from a transport and yields whole frames.
// Safe for concurrent Feed/Next calls from different goroutines (readers
// draining while a writer queues more bytes), per spec §5.
type Framer struct {
	dialect Dialect

	mu  sync.Mutex
	buf []byte
}

// New creates a Framer for the given dialect.
func New(dialect Dialect) *Framer {
	return &Framer{dialect: dialect}
}

// Feed appends newly received bytes to the internal buffer.
func (f *Framer) Feed(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buf = append(f.buf, data...)
}

// Next attempts to extract one complete, validated frame from the
// buffer. It returns (frame, true) on success, or (Frame{}, false) once
// the buffer is empty or holds only an incomplete frame. Corrupt bytes
// are resynced past within the same call, so a false return always
// means more input is needed.
func (f *Framer) Next() (Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		if len(f.buf) == 0 {
			return Frame{}, false
		}
		if !f.startsWithValidDelimiter() {
			f.resyncToDelimiter()
			if len(f.buf) == 0 {
				return Frame{}, false
			}
			continue
		}
		switch f.dialect {
		case Radio:
			frame, status := f.nextRadioFrame()
			switch status {
			case frameOK:
				return frame, true
			case frameIncomplete:
				return Frame{}, false
			case frameBad:
				f.buf = f.buf[1:]
				continue
			}
		case Wired:
			frame, status := f.nextWiredFrame()
			switch status {
			case frameOK:
				return frame, true
			case frameIncomplete:
				return Frame{}, false
			case frameBad:
				f.buf = f.buf[1:]
				continue
			}
		}
	}
}

type frameStatus int

const (
	frameOK frameStatus = iota
	frameIncomplete
	frameBad
)

func (f *Framer) startsWithValidDelimiter() bool {
	if len(f.buf) == 0 {
		return false
	}
	switch f.dialect {
	case Radio:
		return f.buf[0] == 0x7E
	default:
		return f.buf[0] == 0xFF || f.buf[0] == 0xFE
	}
}

// resyncToDelimiter advances the buffer to the first occurrence of any
// valid start byte, or clears it entirely if none is found.
func (f *Framer) resyncToDelimiter() {
	var delims []byte
	if f.dialect == Radio {
		delims = []byte{0x7E}
	} else {
		delims = []byte{0xFF, 0xFE}
	}
	best := -1
	for _, d := range delims {
		for i, b := range f.buf {
			if b == d && (best == -1 || i < best) {
				best = i
				break
			}
		}
	}
	if best > 0 {
		f.buf = f.buf[best:]
	} else if best < 0 {
		f.buf = f.buf[:0]
	}
}

// nextRadioFrame implements: 0x7E | len:u16 BE | payload[len] | checksum.
func (f *Framer) nextRadioFrame() (Frame, frameStatus) {
	if len(f.buf) < 3 {
		return Frame{}, frameIncomplete
	}
	length := binary.BigEndian.Uint16(f.buf[1:3])
	if length == 0 || length > radioMaxLen {
		return Frame{}, frameBad
	}
	total := int(length) + 4 // start + len(2) + payload(len) + checksum
	if total > len(f.buf) {
		return Frame{}, frameIncomplete
	}
	// Checksum covers payload+checksum, i.e. bytes [3 .. 3+len], inclusive
	// of the trailing checksum byte.
	if !codec.VerifyChecksum(f.buf[3 : 3+int(length)+1]) {
		return Frame{}, frameBad
	}
	raw := make([]byte, total)
	copy(raw, f.buf[:total])
	f.buf = f.buf[total:]
	return Frame{Raw: raw}, frameOK
}

// nextWiredFrame implements: (0xFF|0xFE) | type | len:u16 BE | payload[len] | crc:u16 LE.
func (f *Framer) nextWiredFrame() (Frame, frameStatus) {
	if len(f.buf) < 4 {
		return Frame{}, frameIncomplete
	}
	length := binary.BigEndian.Uint16(f.buf[2:4])
	if length > wiredMaxLen {
		return Frame{}, frameBad
	}
	total := int(length) + 6 // start(1) + type(1) + len(2) + payload(len) + crc(2)
	if total > len(f.buf) {
		return Frame{}, frameIncomplete
	}
	// CRC-16 over everything after the start byte: type+len+payload+crc.
	if !codec.VerifyCRC16(f.buf[1:total]) {
		return Frame{}, frameBad
	}
	raw := make([]byte, total)
	copy(raw, f.buf[:total])
	f.buf = f.buf[total:]
	return Frame{Raw: raw}, frameOK
}
