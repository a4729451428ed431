package detection

import (
	"fmt"
	"strings"
)

// Limb is the body position a sensor is strapped to.
type Limb int

const (
	LeftHand Limb = iota
	RightHand
	LeftFoot
	RightFoot
)

var limbs = []struct {
	limb    Limb
	id      uint8
	name    string
	display string
	pattern string
}{
	{LeftHand, 2, "LeftHand", "Mano Izquierda", "ManoIzquierda"},
	{RightHand, 1, "RightHand", "Mano Derecha", "ManoDerecha"},
	{LeftFoot, 4, "LeftFoot", "Pierna Izquierda", "PiernaIzquierda"},
	{RightFoot, 3, "RightFoot", "Pierna Derecha", "PiernaDerecha"},
}

// AllLimbs lists every limb in declaration order.
func AllLimbs() []Limb {
	return []Limb{LeftHand, RightHand, LeftFoot, RightFoot}
}

func (l Limb) valid() bool { return l >= LeftHand && l <= RightFoot }

func (l Limb) String() string {
	if !l.valid() {
		return fmt.Sprintf("Limb(%d)", int(l))
	}
	return limbs[l].name
}

// DisplayName is the localized label shown to operators and sent in events.
func (l Limb) DisplayName() string {
	if !l.valid() {
		return l.String()
	}
	return limbs[l].display
}

// Pattern is the substring that identifies the limb in an advertised name.
func (l Limb) Pattern() string {
	if !l.valid() {
		return ""
	}
	return limbs[l].pattern
}

// ID is the limb id the sensor firmware writes into byte 0 of each frame.
func (l Limb) ID() uint8 {
	if !l.valid() {
		return 0
	}
	return limbs[l].id
}

func (l Limb) IsHand() bool { return l == LeftHand || l == RightHand }

func (l Limb) IsFoot() bool { return l == LeftFoot || l == RightFoot }

func (l Limb) MarshalText() ([]byte, error) {
	if !l.valid() {
		return nil, fmt.Errorf("invalid limb %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *Limb) UnmarshalText(text []byte) error {
	for _, entry := range limbs {
		if strings.EqualFold(entry.name, string(text)) {
			*l = entry.limb
			return nil
		}
	}
	return fmt.Errorf("unknown limb %q", string(text))
}

// LimbFromName derives the limb from an advertised device name.
// Names without a known pattern map to LeftHand with ok == false.
func LimbFromName(name string) (limb Limb, ok bool) {
	for _, entry := range limbs {
		if strings.Contains(name, entry.pattern) {
			return entry.limb, true
		}
	}
	return LeftHand, false
}

// LimbFromID maps a frame limb id to a Limb.
func LimbFromID(id uint8) (Limb, bool) {
	for _, entry := range limbs {
		if entry.id == id {
			return entry.limb, true
		}
	}
	return LeftHand, false
}
