package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/beathard/internal/device"
)

// BLEAdvertisement wraps ble.Advertisement to implement device.Advertisement
type BLEAdvertisement struct {
	adv ble.Advertisement
}

// NewBLEAdvertisement creates a new BLEAdvertisement wrapper
func NewBLEAdvertisement(adv ble.Advertisement) *BLEAdvertisement {
	return &BLEAdvertisement{adv: adv}
}

func (a *BLEAdvertisement) LocalName() string { return a.adv.LocalName() }
func (a *BLEAdvertisement) Connectable() bool { return a.adv.Connectable() }
func (a *BLEAdvertisement) RSSI() int         { return a.adv.RSSI() }
func (a *BLEAdvertisement) Addr() string      { return a.adv.Addr().String() }

// Peripheral returns a dial handle that keeps the native address, so a later
// Dial does not have to parse it back from a string.
func (a *BLEAdvertisement) Peripheral() device.Peripheral {
	return &Peripheral{addr: a.adv.Addr()}
}

// Peripheral is the go-ble dial handle cached between sessions.
type Peripheral struct {
	addr ble.Addr
}

// NewPeripheral builds a handle from a textual address.
func NewPeripheral(address string) *Peripheral {
	return &Peripheral{addr: ble.NewAddr(address)}
}

func (p *Peripheral) Address() string { return p.addr.String() }

func nativeAddr(p device.Peripheral) ble.Addr {
	if bp, ok := p.(*Peripheral); ok && bp.addr != nil {
		return bp.addr
	}
	return ble.NewAddr(p.Address())
}
