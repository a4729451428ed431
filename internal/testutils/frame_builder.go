package testutils

import "encoding/binary"

// FrameBuilder assembles raw sensor notifications.
//
//	payload := testutils.NewFrameBuilder().
//	    WithLimbID(2).
//	    WithAcc(1500, 0, 0).
//	    WithGyro(10000, 0, 0).
//	    Build()
type FrameBuilder struct {
	limbID  uint8
	battery uint8
	axes    [6]int16
	extra   []byte
}

func NewFrameBuilder() *FrameBuilder {
	return &FrameBuilder{limbID: 1, battery: 100}
}

func (b *FrameBuilder) WithLimbID(id uint8) *FrameBuilder {
	b.limbID = id
	return b
}

func (b *FrameBuilder) WithBattery(pct uint8) *FrameBuilder {
	b.battery = pct
	return b
}

// WithAcc sets raw accelerometer axes (milli-g at the default scale).
func (b *FrameBuilder) WithAcc(x, y, z int16) *FrameBuilder {
	b.axes[0], b.axes[1], b.axes[2] = x, y, z
	return b
}

// WithGyro sets raw gyroscope axes.
func (b *FrameBuilder) WithGyro(x, y, z int16) *FrameBuilder {
	b.axes[3], b.axes[4], b.axes[5] = x, y, z
	return b
}

// WithTrailer appends bytes past the fixed layout.
func (b *FrameBuilder) WithTrailer(extra ...byte) *FrameBuilder {
	b.extra = append(b.extra, extra...)
	return b
}

func (b *FrameBuilder) Build() []byte {
	buf := make([]byte, 14, 14+len(b.extra))
	buf[0] = b.limbID
	buf[1] = b.battery
	for i, v := range b.axes {
		binary.LittleEndian.PutUint16(buf[2+2*i:], uint16(v))
	}
	return append(buf, b.extra...)
}
