package message

import (
	"encoding/binary"
	"math"

	"github.com/librescoot/vehicle-link/internal/events"
)

// DecodeTelemetry22 unpacks a bit-packed telemetry message #22 body (the
// config message's Body field; body[i] corresponds to wire offset 5+i in
// the original 0xFF message, per §4.6). body must be at least 29 bytes.
func DecodeTelemetry22(body []byte) (events.Telemetry22, bool) {
	if len(body) < 29 {
		return events.Telemetry22{}, false
	}

	itemp := int32(binary.LittleEndian.Uint32(body[0:4]))
	var stemp int16

	stemp = int16(uint32(itemp) & 0x7FF)
	if stemp&0x400 != 0 {
		stemp |= -2048
	}
	roll := float64(stemp) / 10.0

	stemp = int16((uint32(itemp) & 0x3FF800) >> 11)
	if stemp&0x400 != 0 {
		stemp |= -2048
	}
	pitch := float64(stemp) / 10.0

	stemp = int16((uint32(itemp) & 0xFFC00000) >> 22)
	if stemp&0x200 != 0 {
		stemp |= -1024
	}
	yaw := float64(stemp)

	packetLoss := int(body[4])
	rssi := int(body[5])
	throttle := binary.LittleEndian.Uint16(body[6:8])
	altPre := float64(int16(binary.LittleEndian.Uint16(body[8:10]))) / 10.0

	itemp = int32(binary.LittleEndian.Uint32(body[10:14]))
	btemp := body[14]

	stemp = int16(uint32(itemp) & 0x1FFF)
	if stemp&0x1000 != 0 {
		stemp |= -8192
	}
	magX := int(stemp)

	stemp = int16((uint32(itemp) & 0x3FFE000) >> 13)
	if stemp&0x1000 != 0 {
		stemp |= -8192
	}
	magY := int(stemp)

	stemp = int16((uint32(itemp) & 0xFC000000) >> 26)
	stemp |= int16(btemp) << 6
	if stemp&0x1000 != 0 {
		stemp |= -8192
	}
	magZ := int(stemp)

	itemp = int32(binary.LittleEndian.Uint32(body[15:19]))
	stemp = int16(uint32(itemp) & 0x3FF)
	if stemp&0x200 != 0 {
		stemp |= -1024
	}
	velN := float64(stemp) / 10.0

	stemp = int16((uint32(itemp) & 0xFFC00) >> 10)
	if stemp&0x200 != 0 {
		stemp |= -1024
	}
	velE := float64(stemp) / 10.0

	stemp = int16((uint32(itemp) & 0x3FF00000) >> 20)
	if stemp&0x200 != 0 {
		stemp |= -1024
	}
	velD := float64(stemp) / 10.0

	itemp = int32(binary.LittleEndian.Uint32(body[19:23]))
	stemp = int16(uint32(itemp) & 0x3FF)
	if stemp&0x200 != 0 {
		stemp |= -1024
	}
	errN := float64(stemp)
	if uint32(itemp)&0x40000000 == 0 {
		errN /= 10
	}

	stemp = int16((uint32(itemp) & 0xFFC00) >> 10)
	if stemp&0x200 != 0 {
		stemp |= -1024
	}
	errE := float64(stemp)
	if uint32(itemp)&0x40000000 == 0 {
		errE /= 10
	}

	stemp = int16((uint32(itemp) & 0x3FF00000) >> 20)
	if stemp&0x200 != 0 {
		stemp |= -1024
	}
	errD := float64(stemp)
	if uint32(itemp)&0x80000000 == 0 {
		errD /= 10
	}

	battHeli := float64(body[23]) / 10.0
	ustemp := binary.LittleEndian.Uint16(body[24:26])
	timeFlight := uint32(ustemp) * 40
	svs := int(body[26] & 0x1F)
	holdMode := int(body[26]&0xE0) >> 5
	current := float64(body[27]) / 10.0
	picture := int(body[28])

	return events.Telemetry22{
		Roll: roll, Pitch: pitch, Yaw: yaw,
		PacketLoss: packetLoss, RSSI: rssi,
		Throttle: throttle,
		AltPre:   altPre,
		MagX:     magX, MagY: magY, MagZ: magZ,
		VelN: velN, VelE: velE, VelD: velD,
		ErrN: errN, ErrE: errE, ErrD: errD,
		BattHeli:   battHeli,
		TimeFlight: timeFlight,
		SVs:        svs,
		HoldMode:   holdMode,
		Current:    current,
		Picture:    picture,
	}, true
}

// DecodeTelemetry23 unpacks a bit-packed telemetry message #23 body, using
// the same body-offset convention as DecodeTelemetry22.
func DecodeTelemetry23(body []byte) (events.Telemetry23, bool) {
	if len(body) < 29 {
		return events.Telemetry23{}, false
	}

	itemp := int32(binary.LittleEndian.Uint32(body[0:4]))
	var stemp int16

	stemp = int16(uint32(itemp) & 0x7FF)
	if stemp&0x400 != 0 {
		stemp |= -2048
	}
	roll := float64(stemp) / 10.0

	stemp = int16((uint32(itemp) & 0x3FF800) >> 11)
	if stemp&0x400 != 0 {
		stemp |= -2048
	}
	pitch := float64(stemp) / 10.0

	stemp = int16((uint32(itemp) & 0xFFC00000) >> 22)
	if stemp&0x200 != 0 {
		stemp |= -1024
	}
	yaw := float64(stemp)

	packetLoss := int(body[4])
	rssi := int(body[5])
	throttle := binary.LittleEndian.Uint16(body[6:8])
	altPre := float64(int16(binary.LittleEndian.Uint16(body[8:10]))) / 10.0
	altGps := int16(binary.LittleEndian.Uint16(body[10:12]))

	itemp = int32(binary.LittleEndian.Uint32(body[12:16]))
	itemp2 := itemp & 0x7FFFFF
	stemp = int16((uint32(itemp) & 0xFF800000) >> 23)
	if stemp&0x100 != 0 {
		stemp |= -512
	}
	dtemp := float64(stemp)
	if dtemp < 0 {
		dtemp -= float64(itemp2) / 1000000.0
	} else {
		dtemp += float64(itemp2) / 1000000.0
	}
	lat := dtemp

	itemp = int32(binary.LittleEndian.Uint32(body[16:20]))
	itemp2 = itemp & 0x7FFFFF
	stemp = int16((uint32(itemp) & 0xFF800000) >> 23)
	if stemp&0x100 != 0 {
		stemp |= -512
	}
	dtemp = float64(stemp)
	if dtemp < 0 {
		dtemp -= float64(itemp2) / 1000000.0
	} else {
		dtemp += float64(itemp2) / 1000000.0
	}
	lng := dtemp

	itemp = int32(binary.LittleEndian.Uint32(body[20:24]))
	pdop := float64(itemp&0x3FF) / 10.0
	hacc := float64((itemp>>10)&0x7FF) / 10.0
	vacc := float64(int16((itemp>>21)&0x7FF)) / 10.0

	itemp = int32(binary.LittleEndian.Uint32(body[24:28]))
	gpsTimeMs := int64(itemp&0xFFFFF) * 1000

	temperature := math.NaN()
	stemp = int16((itemp >> 20) & 0xFFF)
	if stemp&0x800 != 0 {
		stemp |= -4096
	}
	if stemp != 0x7FF {
		temperature = float64(stemp) * 0.0625
	}

	tilt := body[28]

	return events.Telemetry23{
		Roll: roll, Pitch: pitch, Yaw: yaw,
		PacketLoss: packetLoss, RSSI: rssi,
		Throttle: throttle,
		AltPre:   altPre, AltGps: altGps,
		Lat: lat, Lng: lng,
		PDOP: pdop, HAcc: hacc, VAcc: vacc,
		GPSTimeMs:   gpsTimeMs,
		Temperature: temperature,
		Tilt:        tilt,
	}, true
}

// DecodeThrottleMode extracts the throttle-mode bit from an EEPROM (type 2,
// subtype 16) read reply's body.
func DecodeThrottleMode(body []byte) (bool, bool) {
	if len(body) < 1 {
		return false, false
	}
	return body[0]&0x1 != 0, true
}

// DecodeBypassIMU unpacks the six little-endian int16 gyro/accel samples
// carried by a wired-bypass IMU message (type 6, subtype 0) body.
func DecodeBypassIMU(body []byte) (events.IMUSample, bool) {
	if len(body) < 12 {
		return events.IMUSample{}, false
	}
	var v [6]int16
	for i := 0; i < 6; i++ {
		v[i] = int16(binary.LittleEndian.Uint16(body[i*2 : i*2+2]))
	}
	return events.IMUSample{
		GyroX: v[0], GyroY: v[1], GyroZ: v[2],
		AccX: v[3], AccY: v[4], AccZ: v[5],
	}, true
}
