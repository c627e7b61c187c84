package samba

import (
	"fmt"
	"sort"
)

// Transport names.
const (
	TransportSerial = "serial"
	TransportUSB    = "usb"
)

// Descriptor identifies a discovered brick. It owns nothing; Bus.Open turns
// it into a Session.
type Descriptor struct {
	Transport string

	// Path is the serial device for TransportSerial.
	Path string

	// Bus and Address locate the device for TransportUSB.
	Bus     int
	Address int

	VID, PID uint16
	Serial   string
}

func (d Descriptor) String() string {
	if d.Transport == TransportUSB {
		return fmt.Sprintf("usb bus %d addr %d (%04x:%04x)", d.Bus, d.Address, d.VID, d.PID)
	}
	return fmt.Sprintf("%s (%04x:%04x)", d.Path, d.VID, d.PID)
}

func sortDescriptors(list []Descriptor) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Bus != b.Bus {
			return a.Bus < b.Bus
		}
		return a.Address < b.Address
	})
}
