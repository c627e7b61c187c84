package samba

import (
	"context"

	"github.com/tocurd/go-samba/firmware"
)

// Session is an open, exclusively owned connection to one brick in
// boot-monitor mode. Close releases it and may be called more than once.
type Session interface {
	// Flash writes img to the internal flash, reporting written pages.
	Flash(ctx context.Context, img firmware.Image, progress Progress) error

	// Go starts execution at addr. The boot monitor is gone afterwards.
	Go(ctx context.Context, addr uint32) error

	Close() error
}

// Bus discovers bricks on one transport and opens them.
type Bus interface {
	// FindAll lists candidates in a stable order. An empty list is not an error.
	FindAll(ctx context.Context) ([]Descriptor, error)

	Open(ctx context.Context, d Descriptor) (Session, error)
}

var (
	_ Session = (*Monitor)(nil)
	_ Bus     = (*SerialBus)(nil)
	_ Bus     = (*USBBus)(nil)
)
