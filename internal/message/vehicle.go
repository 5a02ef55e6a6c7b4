package message

import (
	"encoding/binary"

	"github.com/librescoot/vehicle-link/internal/codec"
)

// IdentifyRequest builds the enumeration-sweep identify request broadcast
// on each channel (§4.5.1 "Enumerating").
func IdentifyRequest() []byte {
	bytes := make([]byte, 2, 4)
	bytes[0] = 0xF8
	bytes[1] = 0x00
	return codec.PutCRC16LE(bytes, bytes[0:2])
}

// Acquire builds the connect-handshake acquire message announcing the
// host's local address. configOnly selects the non-controlling ("config")
// acquire mode over the normal master acquire (§4.5.1 "Connecting").
func Acquire(localAddr uint64, configOnly bool) []byte {
	bytes := make([]byte, 9, 11)
	if configOnly {
		bytes[0] = 254
	}
	binary.LittleEndian.PutUint64(bytes[1:9], localAddr)
	return codec.PutCRC16LE(bytes, bytes[0:9])
}

// Query builds the connect-handshake query sent after several acquires,
// which the vehicle answers to confirm the session (§4.5.1 "Connecting").
func Query() []byte {
	bytes := make([]byte, 1, 3)
	bytes[0] = 1
	return codec.PutCRC16LE(bytes, bytes[0:1])
}

// AlarmAck builds the acknowledgement sent in response to a vehicle alarm
// that requires one (§4.5.1 "Connected").
func AlarmAck() []byte {
	bytes := make([]byte, 2, 4)
	bytes[0] = 4
	bytes[1] = 1
	return codec.PutCRC16LE(bytes, bytes[0:2])
}
