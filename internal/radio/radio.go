// Package radio implements the small subset of the radio-module command
// protocol needed to set the channel, discover the local 64-bit module
// address, perform addressed unicast transmits, and observe reset events
// (§4.4). It never speaks the radio module's full command set.
package radio

import (
	"encoding/binary"

	"github.com/librescoot/vehicle-link/internal/codec"
)

const (
	// MaxTransmitChunk is the largest payload a single addressed
	// transmit may carry; longer payloads are split into consecutive
	// chunks (§4.4).
	MaxTransmitChunk = 85

	frameTypeATCommand       = 0x08
	frameTypeTransmit64      = 0x00
	frameTypeReceive64       = 0x80
	frameTypeATResponse      = 0x88
	frameTypeModuleStatus    = 0x8A
	transmitOptionsNoAck     = 0x01
)

// SetChannel builds an AT command frame setting the radio channel.
func SetChannel(channel uint8) []byte {
	payload := []byte{frameTypeATCommand, 0x00, 'C', 'H', channel}
	return wrap(payload)
}

// RequestAddressHalf builds an AT command requesting either the low
// ("SL") or high ("SH") half of the local module's 64-bit address.
func RequestAddressHalf(high bool) []byte {
	half := byte('L')
	if high {
		half = 'H'
	}
	payload := []byte{frameTypeATCommand, 0x01, 'S', half}
	return wrap(payload)
}

// AddressedTransmit wraps data as a 64-bit addressed transmit to dst,
// splitting it into MaxTransmitChunk-sized chunks if necessary (the
// vehicle reassembles; no host-side reassembly is needed).
func AddressedTransmit(dst uint64, data []byte) [][]byte {
	var frames [][]byte
	for offset := 0; offset < len(data) || (len(data) == 0 && offset == 0); {
		end := offset + MaxTransmitChunk
		if end > len(data) {
			end = len(data)
		}
		frames = append(frames, transmitFrame(dst, data[offset:end]))
		offset = end
		if len(data) == 0 {
			break
		}
	}
	return frames
}

func transmitFrame(dst uint64, chunk []byte) []byte {
	payload := make([]byte, 0, 10+len(chunk))
	payload = append(payload, frameTypeTransmit64, 0x00)
	var addr [8]byte
	binary.BigEndian.PutUint64(addr[:], dst)
	payload = append(payload, addr[:]...)
	payload = append(payload, transmitOptionsNoAck)
	payload = append(payload, chunk...)
	return wrap(payload)
}

// wrap builds the radio-module frame: 0x7E | len:u16 BE | payload | checksum.
func wrap(payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+4)
	frame = append(frame, 0x7E)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(payload)))
	frame = append(frame, lenBuf[:]...)
	frame = append(frame, payload...)
	frame = append(frame, codec.Checksum(payload))
	return frame
}

// FrameType identifies the decoded meaning of an inbound radio-module
// frame (§4.4 "Inbound of interest").
type FrameType int

const (
	Unknown FrameType = iota
	Receive64
	ATResponse
	ModuleStatus
)

// Received is a decoded inbound radio-module frame. Only the fields of
// the group matching its Type are set; Payload holds the vehicle-layer
// payload of a Receive64 frame.
type Received struct {
	Type FrameType

	// Receive64 fields.
	Source  uint64
	RSSI    byte
	Options byte
	Payload []byte

	// ATResponse fields.
	IsHigh bool
	IsLow  bool
	Status byte
	Value  uint32

	// ModuleStatus fields.
	StatusByte byte
}

// Parse decodes a complete radio-module frame's payload (the bytes
// between the length field and the trailing checksum, i.e. frame.Raw[3 :
// len(frame.Raw)-1]). It assumes the caller has already verified the
// frame's checksum via the framer.
func Parse(payload []byte) Received {
	if len(payload) == 0 {
		return Received{Type: Unknown}
	}
	switch payload[0] {
	case frameTypeReceive64:
		if len(payload) < 11 {
			return Received{Type: Unknown}
		}
		return Received{
			Type:    Receive64,
			Source:  binary.BigEndian.Uint64(payload[1:9]),
			RSSI:    payload[9],
			Options: payload[10],
			Payload: payload[11:],
		}
	case frameTypeATResponse:
		if len(payload) < 5 {
			return Received{Type: Unknown}
		}
		// payload: type(0x88) | frame#(1) | 'S' | 'H'|'L' | status | value...
		r := Received{
			Type:   ATResponse,
			Status: payload[4],
			IsLow:  payload[3] == 'L',
			IsHigh: payload[3] == 'H',
		}
		if r.Status == 0 && len(payload) >= 9 {
			r.Value = binary.BigEndian.Uint32(payload[5:9])
		}
		return r
	case frameTypeModuleStatus:
		if len(payload) < 2 {
			return Received{Type: Unknown}
		}
		return Received{Type: ModuleStatus, StatusByte: payload[1]}
	default:
		return Received{Type: Unknown}
	}
}
