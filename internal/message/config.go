// Package message implements construction and parsing of vehicle-layer
// messages: identify/acquire/query/alarm-ack, the control multiplexer,
// telemetry stream control, and the bit-packed telemetry unpackers
// (§4.5.1-§4.5.3, §4.6).
package message

import (
	"encoding/binary"

	"github.com/librescoot/vehicle-link/internal/codec"
)

// ConfigMessage is a decoded 0xFF-prefixed configuration message (§4.5.3).
type ConfigMessage struct {
	Type    byte
	SubType byte
	// Body holds the mode byte followed by the payload and its zero
	// padding, i.e. Body[0] is the message's mode byte and Body[1:] is
	// the payload exactly as described in §4.6's field tables (which are
	// specified relative to this same offset). Telemetry (type 1,
	// subtype 22/23) and bypass IMU (type 6, subtype 0) replies carry no
	// mode byte, so for those Body[0] is itself the first data byte;
	// see telemetry.go.
	Body []byte
}

// paddedLen rounds n up to the next multiple of 8, per §4.5.2.
func paddedLen(n int) int {
	if n%8 == 0 {
		return n
	}
	return ((n >> 3) + 1) << 3
}

// BuildConfigMessage constructs a complete 0xFF-prefixed configuration
// message: header, payload, zero padding, and CRC, encrypting the body
// with TEA unless msgType is 6 (bypass), per §4.5.2.
func BuildConfigMessage(msgType, subType, mode byte, payload []byte) []byte {
	length := paddedLen(len(payload) + 2)
	buf := make([]byte, length+6)
	buf[0] = 0xFF
	buf[1] = msgType
	binary.BigEndian.PutUint16(buf[2:4], uint16(length))
	buf[4] = subType
	buf[5] = mode
	copy(buf[6:], payload)
	// buf[6+len(payload) : 4+length] is already zero padding.

	crc := codec.CRC16(buf[1 : length+4])
	binary.LittleEndian.PutUint16(buf[length+4:length+6], crc)

	if msgType != 6 {
		codec.TEAEncrypt(buf, codec.TEAKey, 4, length)
	}
	return buf
}

// ParseConfigMessage decrypts (where applicable) and validates a
// 0xFF-prefixed configuration message, returning its decoded form. msg is
// modified in place by decryption, matching the mutate-in-place style of
// the message's construction counterpart.
func ParseConfigMessage(msg []byte) (ConfigMessage, bool) {
	if len(msg) < 6 || (msg[0] != 0xFF && msg[0] != 0xFE) {
		return ConfigMessage{}, false
	}
	length := int(binary.BigEndian.Uint16(msg[2:4]))
	if length+6 != len(msg) {
		return ConfigMessage{}, false
	}

	// Every 0xFF message type except 0x06 is encrypted. A 0x0A message is
	// accepted either as sent in the clear or encrypted: it is decrypted
	// only when its CRC does not already validate (Open Question
	// resolution in DESIGN.md).
	switch msg[1] {
	case 0x06:
	case 0x0A:
		if !codec.VerifyCRC16(msg[1 : length+6]) {
			codec.TEADecrypt(msg, codec.TEAKey, 4, length)
		}
	default:
		codec.TEADecrypt(msg, codec.TEAKey, 4, length)
	}

	if !codec.VerifyCRC16(msg[1 : length+6]) {
		return ConfigMessage{}, false
	}

	return ConfigMessage{
		Type:    msg[1],
		SubType: msg[4],
		Body:    msg[5 : 4+length],
	}, true
}
