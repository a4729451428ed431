// Package device defines the radio capabilities the rest of the system consumes.
//
// Nothing in here talks to hardware. The interfaces describe the small slice of a
// Bluetooth Low Energy stack that sensor sessions need:
//   - scanning for advertisements on a shared adapter
//   - dialing a discovered peripheral
//   - walking its services and characteristics
//   - streaming notifications from one characteristic
//
// Concrete adapters live in sub-packages (see goble). Errors shared by every
// layer of the device lifecycle are declared here as well.
package device
