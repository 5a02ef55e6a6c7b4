package message

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// buildTelemetry22Body is the inverse of DecodeTelemetry22's bit-packing,
// used to property-test the decoder against known values.
func buildTelemetry22Body(roll, pitch, yaw int16, packetLoss, rssi byte, throttle uint16, altPre int16,
	magX, magY, magZ int16, velN, velE, velD int16, errN, errE, errD int16, errNEDivided, errDDivided bool,
	battHeli byte, timeFlight uint16, svs, holdMode byte, current, picture byte) []byte {

	body := make([]byte, 29)

	itemp0 := (uint32(roll) & 0x7FF) | ((uint32(pitch) & 0x7FF) << 11) | ((uint32(yaw) & 0x3FF) << 22)
	binary.LittleEndian.PutUint32(body[0:4], itemp0)
	body[4] = packetLoss
	body[5] = rssi
	binary.LittleEndian.PutUint16(body[6:8], throttle)
	binary.LittleEndian.PutUint16(body[8:10], uint16(altPre))

	itemp1 := (uint32(magX) & 0x1FFF) | ((uint32(magY) & 0x1FFF) << 13) | ((uint32(magZ) & 0x3F) << 26)
	binary.LittleEndian.PutUint32(body[10:14], itemp1)
	body[14] = byte((uint32(magZ) >> 6) & 0x7F)

	itemp2 := (uint32(velN) & 0x3FF) | ((uint32(velE) & 0x3FF) << 10) | ((uint32(velD) & 0x3FF) << 20)
	binary.LittleEndian.PutUint32(body[15:19], itemp2)

	itemp3 := (uint32(errN) & 0x3FF) | ((uint32(errE) & 0x3FF) << 10) | ((uint32(errD) & 0x3FF) << 20)
	if !errNEDivided {
		itemp3 |= 0x40000000
	}
	if !errDDivided {
		itemp3 |= 0x80000000
	}
	binary.LittleEndian.PutUint32(body[19:23], itemp3)

	body[23] = battHeli
	binary.LittleEndian.PutUint16(body[24:26], timeFlight)
	body[26] = (svs & 0x1F) | (holdMode << 5)
	body[27] = current
	body[28] = picture

	return body
}

func TestTelemetry22RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		roll := int16(rapid.IntRange(-1024, 1023).Draw(t, "roll"))
		pitch := int16(rapid.IntRange(-1024, 1023).Draw(t, "pitch"))
		yaw := int16(rapid.IntRange(-512, 511).Draw(t, "yaw"))
		magX := int16(rapid.IntRange(-4096, 4095).Draw(t, "magX"))
		magY := int16(rapid.IntRange(-4096, 4095).Draw(t, "magY"))
		magZ := int16(rapid.IntRange(-4096, 4095).Draw(t, "magZ"))
		velN := int16(rapid.IntRange(-512, 511).Draw(t, "velN"))
		velE := int16(rapid.IntRange(-512, 511).Draw(t, "velE"))
		velD := int16(rapid.IntRange(-512, 511).Draw(t, "velD"))
		errN := int16(rapid.IntRange(-512, 511).Draw(t, "errN"))
		errE := int16(rapid.IntRange(-512, 511).Draw(t, "errE"))
		errD := int16(rapid.IntRange(-512, 511).Draw(t, "errD"))
		errNEDivided := rapid.Bool().Draw(t, "errNEDivided")
		errDDivided := rapid.Bool().Draw(t, "errDDivided")
		packetLoss := byte(rapid.IntRange(0, 255).Draw(t, "packetLoss"))
		rssi := byte(rapid.IntRange(0, 255).Draw(t, "rssi"))
		throttle := uint16(rapid.IntRange(0, 65535).Draw(t, "throttle"))
		altPre := int16(rapid.IntRange(-32768, 32767).Draw(t, "altPre"))
		battHeli := byte(rapid.IntRange(0, 255).Draw(t, "battHeli"))
		timeFlight := uint16(rapid.IntRange(0, 65535).Draw(t, "timeFlight"))
		svs := byte(rapid.IntRange(0, 31).Draw(t, "svs"))
		holdMode := byte(rapid.IntRange(0, 7).Draw(t, "holdMode"))
		current := byte(rapid.IntRange(0, 255).Draw(t, "current"))
		picture := byte(rapid.IntRange(0, 255).Draw(t, "picture"))

		body := buildTelemetry22Body(roll, pitch, yaw, packetLoss, rssi, throttle, altPre,
			magX, magY, magZ, velN, velE, velD, errN, errE, errD, errNEDivided, errDDivided,
			battHeli, timeFlight, svs, holdMode, current, picture)

		got, ok := DecodeTelemetry22(body)
		if !ok {
			t.Fatalf("decode failed")
		}

		assert.InDelta(t, float64(roll)/10.0, got.Roll, 0.01)
		assert.InDelta(t, float64(pitch)/10.0, got.Pitch, 0.01)
		assert.InDelta(t, float64(yaw), got.Yaw, 0.01)
		assert.Equal(t, int(packetLoss), got.PacketLoss)
		assert.Equal(t, int(rssi), got.RSSI)
		assert.Equal(t, throttle, got.Throttle)
		assert.InDelta(t, float64(altPre)/10.0, got.AltPre, 0.01)
		assert.Equal(t, int(magX), got.MagX)
		assert.Equal(t, int(magY), got.MagY)
		assert.Equal(t, int(magZ), got.MagZ)
		assert.InDelta(t, float64(velN)/10.0, got.VelN, 0.01)
		assert.InDelta(t, float64(velE)/10.0, got.VelE, 0.01)
		assert.InDelta(t, float64(velD)/10.0, got.VelD, 0.01)

		wantErrN := float64(errN)
		if errNEDivided {
			wantErrN /= 10
		}
		assert.InDelta(t, wantErrN, got.ErrN, 0.01)
		wantErrE := float64(errE)
		if errNEDivided {
			wantErrE /= 10
		}
		assert.InDelta(t, wantErrE, got.ErrE, 0.01)
		wantErrD := float64(errD)
		if errDDivided {
			wantErrD /= 10
		}
		assert.InDelta(t, wantErrD, got.ErrD, 0.01)

		assert.InDelta(t, float64(battHeli)/10.0, got.BattHeli, 0.01)
		assert.Equal(t, uint32(timeFlight)*40, got.TimeFlight)
		assert.Equal(t, int(svs), got.SVs)
		assert.Equal(t, int(holdMode), got.HoldMode)
		assert.InDelta(t, float64(current)/10.0, got.Current, 0.01)
		assert.Equal(t, int(picture), got.Picture)
	})
}

func TestDecodeTelemetry22TooShort(t *testing.T) {
	_, ok := DecodeTelemetry22(make([]byte, 10))
	assert.False(t, ok)
}

// buildTelemetry23Body is the inverse of DecodeTelemetry23's bit-packing
// for a fixed set of example values.
func buildTelemetry23Body(latDeg int16, latFrac uint32, lngDeg int16, lngFrac uint32,
	pdop, hacc, vacc uint16, gpsTimeRaw uint32, tempRaw int16, tilt byte) []byte {

	body := make([]byte, 29)
	binary.LittleEndian.PutUint32(body[0:4], 0) // roll/pitch/yaw left at zero

	latWord := ((uint32(latDeg) & 0x1FF) << 23) | (latFrac & 0x7FFFFF)
	binary.LittleEndian.PutUint32(body[12:16], latWord)
	lngWord := ((uint32(lngDeg) & 0x1FF) << 23) | (lngFrac & 0x7FFFFF)
	binary.LittleEndian.PutUint32(body[16:20], lngWord)

	posWord := (uint32(pdop) & 0x3FF) | ((uint32(hacc) & 0x7FF) << 10) | ((uint32(vacc) & 0x7FF) << 21)
	binary.LittleEndian.PutUint32(body[20:24], posWord)

	timeWord := (gpsTimeRaw & 0xFFFFF) | ((uint32(tempRaw) & 0xFFF) << 20)
	binary.LittleEndian.PutUint32(body[24:28], timeWord)

	body[28] = tilt
	return body
}

func TestTelemetry23LatLngRoundTrip(t *testing.T) {
	body := buildTelemetry23Body(45, 123456, -122, 654321, 12, 34, 56, 1000, 100, 7)
	got, ok := DecodeTelemetry23(body)
	if !ok {
		t.Fatalf("decode failed")
	}
	assert.InDelta(t, 45.123456, got.Lat, 1e-6)
	assert.InDelta(t, -122.654321, got.Lng, 1e-6)
	assert.InDelta(t, 1.2, got.PDOP, 0.01)
	assert.InDelta(t, 3.4, got.HAcc, 0.01)
	assert.InDelta(t, 5.6, got.VAcc, 0.01)
	assert.Equal(t, int64(1000000), got.GPSTimeMs)
	assert.InDelta(t, 6.25, got.Temperature, 0.001)
	assert.Equal(t, byte(7), got.Tilt)
}

func TestTelemetry23TemperatureMissingSentinel(t *testing.T) {
	body := buildTelemetry23Body(0, 0, 0, 0, 0, 0, 0, 0, 0x7FF, 0)
	got, ok := DecodeTelemetry23(body)
	if !ok {
		t.Fatalf("decode failed")
	}
	assert.True(t, math.IsNaN(got.Temperature))
}

func TestDecodeThrottleMode(t *testing.T) {
	on, ok := DecodeThrottleMode([]byte{0x01})
	assert.True(t, ok)
	assert.True(t, on)

	off, ok := DecodeThrottleMode([]byte{0x00})
	assert.True(t, ok)
	assert.False(t, off)
}

func TestDecodeBypassIMU(t *testing.T) {
	body := make([]byte, 12)
	vals := []int16{1, -2, 3, -4, 5, -6}
	for i, v := range vals {
		binary.LittleEndian.PutUint16(body[i*2:], uint16(v))
	}
	imu, ok := DecodeBypassIMU(body)
	assert.True(t, ok)
	assert.Equal(t, int16(1), imu.GyroX)
	assert.Equal(t, int16(-2), imu.GyroY)
	assert.Equal(t, int16(3), imu.GyroZ)
	assert.Equal(t, int16(-4), imu.AccX)
	assert.Equal(t, int16(5), imu.AccY)
	assert.Equal(t, int16(-6), imu.AccZ)
}
