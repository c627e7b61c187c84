package samba

import (
	"context"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// serialPoll is the read timeout set on the port; Monitor loops over it.
const serialPoll = 50 * time.Millisecond

// SerialBus finds bricks bound to a CDC-ACM driver (ttyACM on Linux, COM on
// Windows) and talks to them through go.bug.st/serial.
type SerialBus struct {
	Mode    *serial.Mode
	Options []Option

	listPorts func() ([]*enumerator.PortDetails, error)
	openPort  func(name string, mode *serial.Mode) (serial.Port, error)
}

// NewSerialBus returns a bus whose sessions are configured with opts.
func NewSerialBus(opts ...Option) *SerialBus {
	return &SerialBus{
		Mode:      &serial.Mode{BaudRate: 115200},
		Options:   opts,
		listPorts: enumerator.GetDetailedPortsList,
		openPort:  serial.Open,
	}
}

// FindAll lists serial ports that belong to a boot monitor, sorted by path.
func (b *SerialBus) FindAll(ctx context.Context) ([]Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	ports, err := b.listPorts()
	if err != nil {
		return nil, &DiscoveryError{Transport: TransportSerial, Err: err}
	}

	var found []Descriptor
	for _, p := range ports {
		if d, ok := matchPort(p); ok {
			glog.V(1).Infof("samba: candidate %s", d)
			found = append(found, d)
		}
	}
	sortDescriptors(found)
	return found, nil
}

// Open opens the port and performs the handshake. On failure the port is
// already closed.
func (b *SerialBus) Open(ctx context.Context, d Descriptor) (Session, error) {
	port, err := b.openPort(d.Path, b.Mode)
	if err != nil {
		return nil, errors.Annotatef(err, "open %s", d.Path)
	}
	if err := port.SetReadTimeout(serialPoll); err != nil {
		port.Close()
		return nil, errors.Trace(err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, errors.Trace(err)
	}

	m := NewMonitor(port, b.Options...)
	if err := m.Handshake(ctx); err != nil {
		m.Close()
		return nil, errors.Annotatef(err, "%s", d)
	}
	return m, nil
}

func matchPort(p *enumerator.PortDetails) (Descriptor, bool) {
	if p == nil || !p.IsUSB {
		return Descriptor{}, false
	}
	vid, err := strconv.ParseUint(p.VID, 16, 16)
	if err != nil || vid != VendorID {
		return Descriptor{}, false
	}
	pid, err := strconv.ParseUint(p.PID, 16, 16)
	if err != nil || pid != ProductID {
		return Descriptor{}, false
	}
	return Descriptor{
		Transport: TransportSerial,
		Path:      p.Name,
		VID:       uint16(vid),
		PID:       uint16(pid),
		Serial:    p.SerialNumber,
	}, true
}
