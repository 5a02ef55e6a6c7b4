package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnwrapEchoedRadioDialect(t *testing.T) {
	inner := []byte{0x7E, 0x00, 0x02, 0xAA, 0xBB, 0xCC}
	data := append([]byte{0xDF, 0x00, byte(len(inner) + 1), udpTypeEcho | udpEchoIncoming}, inner...)
	length := len(inner) + 1

	got := unwrapEchoed(data, length)
	assert.Equal(t, inner, got)
}

func TestUnwrapEchoedWiredDialect(t *testing.T) {
	inner := []byte{0xFF, 0x06, 0x00, 0x02, 0xAA, 0xBB, 0xCC, 0xDD}
	data := append([]byte{0xDF, 0x00, byte(len(inner) + 1), udpTypeEcho | udpEchoOutgoing}, inner...)
	length := len(inner) + 1

	got := unwrapEchoed(data, length)
	assert.Equal(t, inner, got)
}

func TestUnwrapEchoedTruncatedReturnsNil(t *testing.T) {
	inner := []byte{0x7E, 0x00, 0x10} // claims a 16-byte payload that isn't there
	data := append([]byte{0xDF, 0x00, byte(len(inner) + 1), udpTypeEcho | udpEchoIncoming}, inner...)
	length := len(inner) + 1

	got := unwrapEchoed(data, length)
	assert.Nil(t, got)
}

func TestUnwrapEchoedEmptyBody(t *testing.T) {
	data := []byte{0xDF, 0x00, 1, udpTypeEcho | udpEchoIncoming}
	got := unwrapEchoed(data, 1)
	assert.Nil(t, got)
}
