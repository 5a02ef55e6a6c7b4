package message

import (
	"encoding/binary"

	"github.com/librescoot/vehicle-link/internal/codec"
)

// TxMap maps the eight public 0-100 control inputs (in the order
// [roll, pitch, throttle, yaw, tilt, ascent, hold, shutter, zoom]) onto the
// 16-slot physical channel array (§3.1 "Controls").
var TxMap = [16]uint8{1, 2, 0, 3, 7, 5, 8, 4, 6, 9, 10, 11, 12, 13, 14, 15}

// MapControls scales the eight public control inputs into the 16-entry
// physical channel array used by both the wireless round-robin frame and
// the config-mode control message. The throttle input c[2] (physical
// channel TxMap[2] == 0) is offset differently depending on throttleMode: bidirectional (-511..511) when
// throttleMode is true, unidirectional (0..1022) otherwise.
func MapControls(c [8]uint8, throttleMode bool) [16]int16 {
	var channels [16]int16
	scale := func(v uint8) int16 { return int16(1022.0*float64(v)/100.0 - 511) }
	channels[TxMap[0]] = scale(c[0])
	channels[TxMap[1]] = scale(c[1])
	if throttleMode {
		channels[TxMap[2]] = scale(c[2])
	} else {
		channels[TxMap[2]] = int16(1022.0 * float64(c[2]) / 100.0)
	}
	channels[TxMap[3]] = scale(c[3])
	channels[TxMap[4]] = scale(c[4])
	channels[TxMap[5]] = scale(c[5])
	channels[TxMap[6]] = int16(511.0 * float64(c[6]) / 100.0)
	channels[TxMap[7]] = scale(c[7])
	return channels
}

// MapMotors scales the eight public control inputs directly into
// 0..1023 motor speeds, used by wired bypass mode.
func MapMotors(c [8]uint8) [8]uint16 {
	var motors [8]uint16
	for i, v := range c {
		motors[i] = uint16(1023 * int(v) / 100)
	}
	return motors
}

// BuildWirelessControlFrame builds one tick of the wireless non-config
// control round robin (§4.5.1 "Connected"). interval must be in 0..4;
// interval 4 sends nothing (the vehicle gets that tick to flush its own
// queued messages) and BuildWirelessControlFrame returns nil.
func BuildWirelessControlFrame(interval int, channels [16]int16) []byte {
	if interval == 4 {
		return nil
	}
	chCount := 6 + interval%2
	frame := make([]byte, 2+chCount*2, 4+chCount*2)
	frame[0] = 0x07
	frame[1] = byte(chCount)
	if interval == 3 {
		frame[1] |= 0x80
	}
	for i := 0; i < 4; i++ {
		writeChannelSlot(frame, i, i, channels[i])
	}
	if interval%2 == 0 {
		writeChannelSlot(frame, 4, 4, channels[4])
		writeChannelSlot(frame, 5, 5, channels[5])
	} else {
		writeChannelSlot(frame, 4, 6, channels[6])
		writeChannelSlot(frame, 5, 7, channels[7])
		writeChannelSlot(frame, 6, 8, channels[8])
	}
	return codec.PutCRC16LE(frame, frame)
}

// writeChannelSlot packs a channel's 10-bit value and its index nibble
// into message slot (byte offset 2+2*slot), tagged with channel index ch.
func writeChannelSlot(frame []byte, slot, ch int, value int16) {
	off := 2 + 2*slot
	binary.BigEndian.PutUint16(frame[off:], uint16(value))
	frame[off] = (frame[off] & 0x0F) | byte(ch<<4)
}

// BuildBypassMotorFrame builds the wired-bypass motor-speed config message
// (type 6, subtype 1).
func BuildBypassMotorFrame(motors [8]uint16) []byte {
	payload := make([]byte, 16)
	for i, m := range motors {
		binary.LittleEndian.PutUint16(payload[i*2:], m)
	}
	return BuildConfigMessage(6, 1, 1, payload)
}

// BuildConfigControlFrame builds the config-mode 10-channel control
// message (type 5, subtype 0), tagging each channel with its index nibble.
func BuildConfigControlFrame(channels [16]int16) []byte {
	payload := make([]byte, 21)
	payload[0] = 10
	for i := 0; i < 10; i++ {
		off := 1 + 2*i
		binary.LittleEndian.PutUint16(payload[off:], uint16(channels[i]))
		payload[off+1] = (payload[off+1] & 0x0F) | byte(i<<4)
	}
	return BuildConfigMessage(5, 0, 1, payload)
}
