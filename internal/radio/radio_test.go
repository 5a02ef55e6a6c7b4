package radio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetChannelFrame(t *testing.T) {
	frame := SetChannel(0x0E)
	assert.Equal(t, []byte{0x7E, 0x00, 0x05, 0x08, 0x00, 'C', 'H', 0x0E}, frame[:len(frame)-1])
}

func TestAddressedTransmitChunking(t *testing.T) {
	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(i)
	}
	frames := AddressedTransmit(0x1122334455667788, data)
	assert.Equal(t, 3, len(frames)) // 85 + 85 + 30

	var reassembled []byte
	for _, f := range frames {
		payload := f[3 : len(f)-1]
		assert.Equal(t, byte(0x00), payload[0])
		reassembled = append(reassembled, payload[11:]...)
	}
	assert.Equal(t, data, reassembled)
}

func TestAddressedTransmitEmptyPayload(t *testing.T) {
	frames := AddressedTransmit(0x01, nil)
	assert.Equal(t, 1, len(frames))
}

func TestParseReceive64(t *testing.T) {
	payload := []byte{0x80}
	var addr [8]byte
	for i := range addr {
		addr[i] = byte(i + 1)
	}
	payload = append(payload, addr[:]...)
	payload = append(payload, 0xAB, 0x01, 0xF8, 0x00)

	r := Parse(payload)
	assert.Equal(t, Receive64, r.Type)
	assert.Equal(t, uint64(0x0102030405060708), r.Source)
	assert.Equal(t, byte(0xAB), r.RSSI)
	assert.Equal(t, []byte{0xF8, 0x00}, r.Payload)
}

func TestParseATResponseSL(t *testing.T) {
	payload := []byte{0x88, 0x00, 'S', 'L', 0x00, 0x11, 0x22, 0x33, 0x44}
	r := Parse(payload)
	assert.Equal(t, ATResponse, r.Type)
	assert.True(t, r.IsLow)
	assert.False(t, r.IsHigh)
	assert.Equal(t, byte(0), r.Status)
	assert.Equal(t, uint32(0x11223344), r.Value)
}

func TestParseModuleStatusReset(t *testing.T) {
	r := Parse([]byte{0x8A, 0x00})
	assert.Equal(t, ModuleStatus, r.Type)
	assert.Equal(t, byte(0), r.StatusByte)
}

func TestParseUnknown(t *testing.T) {
	r := Parse([]byte{0x99})
	assert.Equal(t, Unknown, r.Type)
}
