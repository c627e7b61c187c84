// Package samba talks to the Atmel SAM-BA boot monitor of a LEGO NXT brick
// in reset mode: finding the brick, writing its flash and starting new code.
package samba

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/tocurd/go-samba/firmware"
)

// USB identity of the AT91SAM7 boot monitor.
const (
	VendorID  = 0x03EB
	ProductID = 0x6124
)

// Memory map of the AT91SAM7S256 on the NXT.
const (
	FlashBase = 0x00100000

	// EntryAddress is where freshly flashed NXT firmware starts.
	EntryAddress = FlashBase

	pagesPerRegion = 64
)

// Embedded flash controller.
const (
	regFMR = 0xFFFFFF60
	regFCR = 0xFFFFFF64
	regFSR = 0xFFFFFF68

	fmrValue = 0x00050100

	fcrKey       = 0x5A << 24
	cmdWritePage = 0x01
	cmdClearLock = 0x04

	fsrReady     = 1 << 0
	fsrLockError = 1 << 2
	fsrProgError = 1 << 3
	fsrLockShift = 16
)

// ErrClosed is returned by operations on a released Monitor.
var ErrClosed = errors.New("samba: monitor closed")

// Monitor speaks the SAM-BA boot monitor protocol in binary ("N") mode.
// It is not safe for concurrent use.
type Monitor struct {
	port   Port
	config Config
}

// NewMonitor wraps an open port. Call Handshake before anything else.
func NewMonitor(port Port, opts ...Option) *Monitor {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Monitor{port: port, config: cfg}
}

// Handshake switches the monitor to binary mode and checks that it answers.
func (m *Monitor) Handshake(ctx context.Context) error {
	if err := m.send(ctx, "N#"); err != nil {
		return err
	}
	reply, err := m.readFull(ctx, 2)
	if err != nil {
		return errors.Annotate(err, "handshake")
	}
	if !bytes.Equal(reply, []byte("\n\r")) {
		return errors.Errorf("handshake: unexpected reply %q", reply)
	}
	return nil
}

// WriteWord stores value at addr with a 32-bit access. The monitor does not
// acknowledge it.
func (m *Monitor) WriteWord(ctx context.Context, addr, value uint32) error {
	return m.send(ctx, fmt.Sprintf("W%08X,%08X#", addr, value))
}

// ReadWord loads the 32-bit little-endian word at addr.
func (m *Monitor) ReadWord(ctx context.Context, addr uint32) (uint32, error) {
	if err := m.send(ctx, fmt.Sprintf("w%08X,4#", addr)); err != nil {
		return 0, err
	}
	data, err := m.readFull(ctx, 4)
	if err != nil {
		return 0, errors.Annotatef(err, "read word 0x%08X", addr)
	}
	return binary.LittleEndian.Uint32(data), nil
}

// Go jumps to addr.
func (m *Monitor) Go(ctx context.Context, addr uint32) error {
	return m.send(ctx, fmt.Sprintf("G%08X#", addr))
}

// Flash programs img page by page starting at FlashBase. Lock regions the
// image touches are unlocked first. Progress receives the number of pages
// written so far, ending at img.Pages().
func (m *Monitor) Flash(ctx context.Context, img firmware.Image, progress Progress) error {
	if !img.Valid() {
		return errors.NotValidf("firmware image")
	}
	if progress == nil {
		progress = nopProgress{}
	}
	pages := img.Pages()

	if _, err := m.waitReady(ctx); err != nil {
		return errors.Annotate(err, "flash controller")
	}
	if err := m.WriteWord(ctx, regFMR, fmrValue); err != nil {
		return err
	}
	if err := m.unlock(ctx, pages); err != nil {
		return err
	}

	progress.Start(pages)
	for page := 0; page < pages; page++ {
		data := img.Page(page)
		if err := m.writePage(ctx, page, data); err != nil {
			return &FlashError{Page: page, Err: err}
		}
		if m.config.Verify {
			if err := m.verifyPage(ctx, page, data); err != nil {
				return &FlashError{Page: page, Err: err}
			}
		}
		progress.Report(page + 1)
	}
	glog.V(1).Infof("samba: wrote %d pages (%d bytes)", pages, img.Len())
	return nil
}

// Close releases the port. Later calls return nil.
func (m *Monitor) Close() error {
	if m.port == nil {
		return nil
	}
	port := m.port
	m.port = nil
	return errors.Trace(port.Close())
}

func (m *Monitor) unlock(ctx context.Context, pages int) error {
	status, err := m.ReadWord(ctx, regFSR)
	if err != nil {
		return err
	}
	regions := (pages + pagesPerRegion - 1) / pagesPerRegion
	for region := 0; region < regions; region++ {
		if status&(1<<(fsrLockShift+region)) == 0 {
			continue
		}
		glog.V(1).Infof("samba: unlocking region %d", region)
		cmd := fcrKey | uint32(region*pagesPerRegion)<<8 | cmdClearLock
		if err := m.WriteWord(ctx, regFCR, cmd); err != nil {
			return err
		}
		if _, err := m.waitReady(ctx); err != nil {
			return errors.Annotatef(err, "unlock region %d", region)
		}
	}
	return nil
}

func (m *Monitor) writePage(ctx context.Context, page int, data []byte) error {
	base := uint32(FlashBase + page*firmware.PageSize)
	for off := 0; off < len(data); off += 4 {
		word := binary.LittleEndian.Uint32(data[off:])
		if err := m.WriteWord(ctx, base+uint32(off), word); err != nil {
			return err
		}
	}

	if err := m.WriteWord(ctx, regFCR, fcrKey|uint32(page)<<8|cmdWritePage); err != nil {
		return err
	}
	status, err := m.waitReady(ctx)
	if err != nil {
		return err
	}
	switch {
	case status&fsrLockError != 0:
		return errors.Errorf("page %d is in a locked region", page)
	case status&fsrProgError != 0:
		return errors.Errorf("programming error (FSR 0x%08X)", status)
	}
	return nil
}

func (m *Monitor) verifyPage(ctx context.Context, page int, data []byte) error {
	base := uint32(FlashBase + page*firmware.PageSize)
	for off := 0; off < len(data); off += 4 {
		addr := base + uint32(off)
		got, err := m.ReadWord(ctx, addr)
		if err != nil {
			return err
		}
		if want := binary.LittleEndian.Uint32(data[off:]); got != want {
			return &VerifyError{Address: addr, Expected: want, Actual: got}
		}
	}
	return nil
}
