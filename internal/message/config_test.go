package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestPaddedLen(t *testing.T) {
	assert.Equal(t, 8, paddedLen(8))
	assert.Equal(t, 8, paddedLen(5))
	assert.Equal(t, 16, paddedLen(9))
	assert.Equal(t, 0, paddedLen(0))
}

func TestBuildAndParseConfigMessageRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		msgType := rapid.SampledFrom([]byte{1, 2, 5, 6, 10}).Draw(t, "type")
		subType := rapid.Byte().Draw(t, "subtype")
		mode := rapid.Byte().Draw(t, "mode")
		payload := rapid.SliceOfN(rapid.Byte(), 0, 32).Draw(t, "payload")

		built := BuildConfigMessage(msgType, subType, mode, payload)
		cfg, ok := ParseConfigMessage(built)
		if !ok {
			t.Fatalf("failed to parse built message")
		}
		assert.Equal(t, msgType, cfg.Type)
		assert.Equal(t, subType, cfg.SubType)
		assert.Equal(t, mode, cfg.Body[0])
		for i, b := range payload {
			assert.Equal(t, b, cfg.Body[1+i])
		}
	})
}

func TestParseConfigMessageRejectsBadStartByte(t *testing.T) {
	built := BuildConfigMessage(5, 0, 1, []byte{0x01})
	built[0] = 0x12
	_, ok := ParseConfigMessage(built)
	assert.False(t, ok)
}

func TestParseConfigMessageAcceptsEitherWiredDelimiter(t *testing.T) {
	built := BuildConfigMessage(5, 0, 1, []byte{0x01})
	built[0] = 0xFE
	_, ok := ParseConfigMessage(built)
	assert.True(t, ok)
}

func TestParseConfigMessageRejectsCorruptedCRC(t *testing.T) {
	built := BuildConfigMessage(5, 0, 1, []byte{0x01, 0x02})
	built[len(built)-1] ^= 0xFF
	_, ok := ParseConfigMessage(built)
	assert.False(t, ok)
}

func TestBypassTypeNotEncrypted(t *testing.T) {
	payload := []byte{0, 0, 0, 0, 0, 0, 0, 0}
	built := BuildConfigMessage(6, 1, 1, payload)
	// Bytes [6:14] (the first 8-byte block of the payload) are untouched
	// by TEA for message type 6, so the all-zero payload stays zero.
	assert.Equal(t, make([]byte, 8), built[6:14])
}
