package samba

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/google/gousb"
	"github.com/juju/errors"
)

// Boot monitor data interface: CDC data class, bulk endpoints 0x01 / 0x82.
const (
	usbConfig      = 1
	usbInterface   = 1
	usbOutEndpoint = 1
	usbInEndpoint  = 2

	usbPoll         = 50 * time.Millisecond
	usbWriteTimeout = 2 * time.Second
)

// USBBus talks to the boot monitor directly through libusb, detaching any
// kernel CDC driver bound to it.
type USBBus struct {
	Options []Option

	newContext func() (*gousb.Context, error)
}

// NewUSBBus returns a bus whose sessions are configured with opts.
func NewUSBBus(opts ...Option) *USBBus {
	return &USBBus{Options: opts, newContext: newUSBContext}
}

// newUSBContext turns the panic gousb raises when libusb cannot initialise
// (no usbfs, missing driver) into an error.
func newUSBContext() (usb *gousb.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			usb = nil
			if e, ok := r.(error); ok {
				err = errors.Annotate(e, "libusb init")
			} else {
				err = errors.Errorf("libusb init: %v", r)
			}
		}
	}()
	return gousb.NewContext(), nil
}

// FindAll lists boot monitors by VID/PID without opening them.
func (b *USBBus) FindAll(ctx context.Context) ([]Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	usb, err := b.usbContext()
	if err != nil {
		return nil, &DiscoveryError{Transport: TransportUSB, Err: err}
	}
	defer usb.Close()

	var found []Descriptor
	// Nothing is opened: the predicate only records matches.
	_, err = usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor == gousb.ID(VendorID) && desc.Product == gousb.ID(ProductID) {
			d := Descriptor{
				Transport: TransportUSB,
				Bus:       desc.Bus,
				Address:   desc.Address,
				VID:       uint16(desc.Vendor),
				PID:       uint16(desc.Product),
			}
			glog.V(1).Infof("samba: candidate %s", d)
			found = append(found, d)
		}
		return false
	})
	if err != nil {
		return nil, &DiscoveryError{Transport: TransportUSB, Err: err}
	}
	sortDescriptors(found)
	return found, nil
}

// Open claims the brick's data interface and performs the handshake.
func (b *USBBus) Open(ctx context.Context, d Descriptor) (Session, error) {
	usb, err := b.usbContext()
	if err != nil {
		return nil, errors.Annotatef(err, "open %s", d)
	}
	port, err := openUSBPort(usb, d)
	if err != nil {
		return nil, err
	}
	m := NewMonitor(port, b.Options...)
	if err := m.Handshake(ctx); err != nil {
		m.Close()
		return nil, errors.Annotatef(err, "%s", d)
	}
	return m, nil
}

// usbPort adapts a claimed bulk endpoint pair to Port.
type usbPort struct {
	usb  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	in   *gousb.InEndpoint
	out  *gousb.OutEndpoint

	packet  []byte
	pending []byte
}

func (b *USBBus) usbContext() (*gousb.Context, error) {
	if b.newContext == nil {
		return newUSBContext()
	}
	return b.newContext()
}

// openUSBPort takes ownership of usb and closes it on failure.
func openUSBPort(usb *gousb.Context, d Descriptor) (_ *usbPort, err error) {
	p := &usbPort{usb: usb}
	defer func() {
		if err != nil {
			p.Close()
		}
	}()

	devs, err := p.usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == d.Bus && desc.Address == d.Address &&
			desc.Vendor == gousb.ID(VendorID) && desc.Product == gousb.ID(ProductID)
	})
	for i, dev := range devs {
		if i > 0 {
			dev.Close()
		}
	}
	if len(devs) == 0 {
		if err != nil {
			return nil, errors.Annotatef(err, "open %s", d)
		}
		return nil, errors.NotFoundf("%s", d)
	}
	p.dev = devs[0]

	if err = p.dev.SetAutoDetach(true); err != nil {
		return nil, errors.Annotate(err, "detach kernel driver")
	}
	if p.cfg, err = p.dev.Config(usbConfig); err != nil {
		return nil, errors.Annotatef(err, "config %d", usbConfig)
	}
	if p.intf, err = p.cfg.Interface(usbInterface, 0); err != nil {
		return nil, errors.Annotatef(err, "claim interface %d", usbInterface)
	}
	if p.in, err = p.intf.InEndpoint(usbInEndpoint); err != nil {
		return nil, errors.Trace(err)
	}
	if p.out, err = p.intf.OutEndpoint(usbOutEndpoint); err != nil {
		return nil, errors.Trace(err)
	}
	p.packet = make([]byte, p.in.Desc.MaxPacketSize)
	return p, nil
}

// Read drains buffered bytes first; bulk reads always ask for a full packet
// so a short reply cannot overflow the transfer.
func (p *usbPort) Read(buf []byte) (int, error) {
	if len(p.pending) == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), usbPoll)
		defer cancel()
		n, err := p.in.ReadContext(ctx, p.packet)
		if err != nil && ctx.Err() == nil {
			return 0, errors.Trace(err)
		}
		p.pending = append(p.pending, p.packet[:n]...)
	}
	n := copy(buf, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *usbPort) Write(buf []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), usbWriteTimeout)
	defer cancel()
	n, err := p.out.WriteContext(ctx, buf)
	return n, errors.Trace(err)
}

func (p *usbPort) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if p.intf != nil {
		p.intf.Close()
		p.intf = nil
	}
	if p.cfg != nil {
		keep(p.cfg.Close())
		p.cfg = nil
	}
	if p.dev != nil {
		keep(p.dev.Close())
		p.dev = nil
	}
	if p.usb != nil {
		keep(p.usb.Close())
		p.usb = nil
	}
	return errors.Trace(first)
}
