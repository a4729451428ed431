// Package frame decodes raw sensor notifications.
//
// Wire layout, little-endian, 14 bytes minimum:
//
//	[limb_id:u8][battery:u8][acc_x:i16][acc_y:i16][acc_z:i16][gyro_x:i16][gyro_y:i16][gyro_z:i16]
//
// Trailing bytes are ignored.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Size is the minimum length of a sensor frame.
const Size = 14

var ErrIncompleteFrame = errors.New("incomplete frame")

// Sample is one decoded sensor reading.
type Sample struct {
	LimbID    uint8
	Battery   uint8
	AccX      int16
	AccY      int16
	AccZ      int16
	GyroX     int16
	GyroY     int16
	GyroZ     int16
	Timestamp int64 // host clock at decode time, epoch ms
}

// Decode parses b. The sensor sends no clock, so the sample is stamped with now.
func Decode(b []byte, now time.Time) (Sample, error) {
	if len(b) < Size {
		return Sample{}, fmt.Errorf("%w: got %d bytes, need %d", ErrIncompleteFrame, len(b), Size)
	}

	i16 := func(off int) int16 {
		return int16(binary.LittleEndian.Uint16(b[off:]))
	}

	return Sample{
		LimbID:    b[0],
		Battery:   b[1],
		AccX:      i16(2),
		AccY:      i16(4),
		AccZ:      i16(6),
		GyroX:     i16(8),
		GyroY:     i16(10),
		GyroZ:     i16(12),
		Timestamp: now.UnixMilli(),
	}, nil
}
