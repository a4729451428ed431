package testutils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/srg/beathard/internal/device"
	"github.com/stretchr/testify/mock"
)

// CharacteristicConfig represents a characteristic in a mocked profile
type CharacteristicConfig struct {
	UUID       string `json:"uuid"`
	Properties string `json:"properties,omitempty"` // e.g., "read,notify"
}

// ServiceConfig represents a service in a mocked profile
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// DeviceProfileConfig represents the complete GATT profile of a mocked peripheral
type DeviceProfileConfig struct {
	Services []ServiceConfig `json:"services"`
}

// PeripheralBuilder builds a MockLink with a fixed GATT profile and stream.
type PeripheralBuilder struct {
	address string
	profile DeviceProfileConfig
	stream  *FakeStream

	dialErr      error
	discoverErr  error
	subscribeErr error
	closeErr     error
}

// NewPeripheralBuilder starts a peripheral with a single sensor service whose
// only characteristic notifies.
func NewPeripheralBuilder(address string) *PeripheralBuilder {
	return &PeripheralBuilder{
		address: address,
		stream:  NewFakeStream(16),
		profile: DeviceProfileConfig{
			Services: []ServiceConfig{{
				UUID: "6e400001-b5a3-f393-e0a9-e50e24dcca9e",
				Characteristics: []CharacteristicConfig{
					{UUID: "6e400003-b5a3-f393-e0a9-e50e24dcca9e", Properties: "notify"},
				},
			}},
		},
	}
}

// WithProfile clears the default profile so services can be added one by one.
func (b *PeripheralBuilder) WithProfile() *PeripheralBuilder {
	b.profile = DeviceProfileConfig{}
	return b
}

// WithService adds a service to the profile
func (b *PeripheralBuilder) WithService(uuid string) *PeripheralBuilder {
	b.profile.Services = append(b.profile.Services, ServiceConfig{UUID: uuid})
	return b
}

// WithCharacteristic adds a characteristic to the last added service
func (b *PeripheralBuilder) WithCharacteristic(uuid, properties string) *PeripheralBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}
	last := len(b.profile.Services) - 1
	b.profile.Services[last].Characteristics = append(b.profile.Services[last].Characteristics,
		CharacteristicConfig{UUID: uuid, Properties: properties})
	return b
}

// FromJSON replaces the profile with the given JSON
func (b *PeripheralBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralBuilder {
	var config DeviceProfileConfig
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), &config); err != nil {
		panic(fmt.Sprintf("PeripheralBuilder.FromJSON: failed to unmarshal: %v", err))
	}
	b.profile = config
	return b
}

func (b *PeripheralBuilder) WithStream(st *FakeStream) *PeripheralBuilder {
	b.stream = st
	return b
}

func (b *PeripheralBuilder) WithDialError(err error) *PeripheralBuilder {
	b.dialErr = err
	return b
}

func (b *PeripheralBuilder) WithDiscoverError(err error) *PeripheralBuilder {
	b.discoverErr = err
	return b
}

func (b *PeripheralBuilder) WithSubscribeError(err error) *PeripheralBuilder {
	b.subscribeErr = err
	return b
}

func (b *PeripheralBuilder) WithCloseError(err error) *PeripheralBuilder {
	b.closeErr = err
	return b
}

func (b *PeripheralBuilder) Address() string { return b.address }

func (b *PeripheralBuilder) Stream() *FakeStream { return b.stream }

// Build creates the MockLink with expectations for the configured profile.
func (b *PeripheralBuilder) Build() *MockLink {
	link := NewMockLink(b.address)

	if b.discoverErr != nil {
		link.On("DiscoverServices", mock.Anything).Return(nil, b.discoverErr)
	} else {
		var svcs []device.Service
		for _, svcConfig := range b.profile.Services {
			svc := &StubService{ID: svcConfig.UUID}
			svcs = append(svcs, svc)

			var chars []device.Characteristic
			for _, c := range svcConfig.Characteristics {
				char := &StubCharacteristic{ID: c.UUID, Props: ParseProperties(c.Properties)}
				chars = append(chars, char)

				if b.subscribeErr != nil {
					link.On("Subscribe", mock.Anything, char).Return(nil, b.subscribeErr)
				} else {
					link.On("Subscribe", mock.Anything, char).Return(b.stream, nil)
				}
			}
			link.On("DiscoverCharacteristics", mock.Anything, svc).Return(chars, nil)
		}
		link.On("DiscoverServices", mock.Anything).Return(svcs, nil)
	}

	link.On("Close").Return(b.closeErr)
	return link
}

// ParseProperties converts "read,notify" style strings to device.Property flags.
func ParseProperties(props string) device.Property {
	var p device.Property
	for _, name := range strings.Split(props, ",") {
		switch strings.TrimSpace(name) {
		case "broadcast":
			p |= device.PropBroadcast
		case "read":
			p |= device.PropRead
		case "write-without-response":
			p |= device.PropWriteWithoutResponse
		case "write":
			p |= device.PropWrite
		case "notify":
			p |= device.PropNotify
		case "indicate":
			p |= device.PropIndicate
		}
	}
	return p
}
