// Package flasher drives one complete firmware update of an NXT brick:
// validate the image, find and open the brick, write the image, start it
// and release the brick.
package flasher

import (
	"context"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/juju/errors"

	samba "github.com/tocurd/go-samba"
	"github.com/tocurd/go-samba/firmware"
)

// Flasher holds the collaborators for a run. Source and Bus are required.
type Flasher struct {
	Source   firmware.Source
	Bus      samba.Bus
	Progress samba.Progress

	// Out receives the console transcript. Defaults to io.Discard.
	Out io.Writer

	// Entry is the execution address. Zero means samba.EntryAddress.
	Entry uint32
}

// RunArgs checks that exactly one firmware path was given, then runs.
func (f *Flasher) RunArgs(ctx context.Context, args []string) Result {
	if len(args) != 1 {
		return fail(StageUsage, errors.Errorf("expected 1 argument, got %d", len(args)))
	}
	return f.Run(ctx, args[0])
}

// Run performs the whole sequence once. Once the brick is open it is
// released on every path; a failed release after an earlier failure is
// logged and the earlier error is returned.
func (f *Flasher) Run(ctx context.Context, path string) Result {
	out := f.out()

	fmt.Fprint(out, "Checking firmware... ")
	img, err := firmware.Load(ctx, f.Source, path)
	if err != nil {
		fmt.Fprintln(out)
		return fail(StageValidate, err)
	}
	fmt.Fprintln(out, "OK.")

	found, err := f.Bus.FindAll(ctx)
	if err != nil {
		return fail(StageDiscover, err)
	}
	if len(found) == 0 {
		return fail(StageNotFound, errors.NotFoundf("NXT in reset mode"))
	}
	if len(found) > 1 {
		glog.Warningf("found %d bricks, using %s", len(found), found[0])
	}

	dev, err := f.Bus.Open(ctx, found[0])
	if err != nil {
		return fail(StageOpen, err)
	}
	fmt.Fprintln(out, "NXT device in reset mode located and opened.")

	return f.program(ctx, dev, img)
}

func (f *Flasher) program(ctx context.Context, dev samba.Session, img firmware.Image) Result {
	out := f.out()

	fmt.Fprintln(out, "Starting firmware flash procedure now...")
	if err := dev.Flash(ctx, img, samba.Monotonic(f.progress())); err != nil {
		f.release(dev, StageFlash)
		return fail(StageFlash, err)
	}
	fmt.Fprintln(out, "Firmware flash complete.")

	if err := dev.Go(ctx, f.entry()); err != nil {
		f.release(dev, StageExecute)
		return fail(StageExecute, err)
	}
	fmt.Fprintln(out, "New firmware started!")

	if err := dev.Close(); err != nil {
		return fail(StageRelease, err)
	}
	return Result{}
}

// release is the best-effort cleanup after a failed stage.
func (f *Flasher) release(dev samba.Session, after Stage) {
	if err := dev.Close(); err != nil {
		glog.Warningf("release after %s failure: %v", after, err)
	}
}

func (f *Flasher) out() io.Writer {
	if f.Out == nil {
		return io.Discard
	}
	return f.Out
}

func (f *Flasher) progress() samba.Progress {
	if f.Progress == nil {
		return samba.ProgressFunc(func(int, int) {})
	}
	return f.Progress
}

func (f *Flasher) entry() uint32 {
	if f.Entry == 0 {
		return samba.EntryAddress
	}
	return f.Entry
}
