package flasher

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	jujuerrors "github.com/juju/errors"

	samba "github.com/tocurd/go-samba"
	"github.com/tocurd/go-samba/firmware"
)

type fakeSource struct {
	data  []byte
	err   error
	calls int
}

func (s *fakeSource) ReadImage(ctx context.Context, path string) ([]byte, error) {
	s.calls++
	return s.data, s.err
}

type fakeSession struct {
	flashErr, goErr, closeErr error

	flashes, gos, closes int
	goAddr               uint32
}

func (s *fakeSession) Flash(ctx context.Context, img firmware.Image, p samba.Progress) error {
	s.flashes++
	if !img.Valid() {
		return errors.New("unvalidated image")
	}
	p.Start(img.Pages())
	if s.flashErr != nil {
		return s.flashErr
	}
	for page := 1; page <= img.Pages(); page++ {
		p.Report(page)
	}
	return nil
}

func (s *fakeSession) Go(ctx context.Context, addr uint32) error {
	s.gos++
	s.goAddr = addr
	return s.goErr
}

func (s *fakeSession) Close() error {
	s.closes++
	return s.closeErr
}

type fakeBus struct {
	found   []samba.Descriptor
	findErr error
	openErr error
	session *fakeSession

	finds  int
	opened []samba.Descriptor
}

func (b *fakeBus) FindAll(ctx context.Context) ([]samba.Descriptor, error) {
	b.finds++
	return b.found, b.findErr
}

func (b *fakeBus) Open(ctx context.Context, d samba.Descriptor) (samba.Session, error) {
	b.opened = append(b.opened, d)
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.session, nil
}

type progressLog struct {
	total  int
	values []int
}

func (p *progressLog) Start(total int) { p.total = total }
func (p *progressLog) Report(done int) { p.values = append(p.values, done) }

var brick = samba.Descriptor{Transport: samba.TransportSerial, Path: "/dev/ttyACM0", VID: samba.VendorID, PID: samba.ProductID}

type fixture struct {
	source   *fakeSource
	bus      *fakeBus
	session  *fakeSession
	progress *progressLog
	out      *bytes.Buffer
	flasher  *Flasher
}

func newFixture() *fixture {
	fx := &fixture{
		source:   &fakeSource{data: bytes.Repeat([]byte{0xEA}, 64)},
		session:  &fakeSession{},
		progress: &progressLog{},
		out:      &bytes.Buffer{},
	}
	fx.bus = &fakeBus{found: []samba.Descriptor{brick}, session: fx.session}
	fx.flasher = &Flasher{
		Source:   fx.source,
		Bus:      fx.bus,
		Progress: fx.progress,
		Out:      fx.out,
	}
	return fx
}

func (fx *fixture) run(t *testing.T) Result {
	t.Helper()
	return fx.flasher.Run(context.Background(), "firmware.rfw")
}

func TestRunSuccess(t *testing.T) {
	fx := newFixture()
	r := fx.run(t)

	if !r.OK() || r.ExitCode() != 0 {
		t.Fatalf("Run() = %v / %v", r.Stage, r.Err)
	}
	if fx.session.flashes != 1 || fx.session.gos != 1 || fx.session.closes != 1 {
		t.Errorf("flash/go/close = %d/%d/%d", fx.session.flashes, fx.session.gos, fx.session.closes)
	}
	if fx.session.goAddr != 0x00100000 {
		t.Errorf("go address = 0x%08X", fx.session.goAddr)
	}
	if n := len(fx.progress.values); n == 0 || fx.progress.values[n-1] != fx.progress.total {
		t.Errorf("progress %v, total %d", fx.progress.values, fx.progress.total)
	}

	out := fx.out.String()
	last := -1
	for _, msg := range []string{"OK.", "flash complete.", "New firmware started!"} {
		idx := strings.Index(out, msg)
		if idx < 0 || idx < last {
			t.Fatalf("message %q missing or out of order in:\n%s", msg, out)
		}
		last = idx
	}
}

func TestRunValidationFailure(t *testing.T) {
	for name, src := range map[string]*fakeSource{
		"empty":     {data: nil},
		"too large": {data: make([]byte, firmware.MaxSize+1)},
		"read":      {err: errors.New("no such file")},
	} {
		t.Run(name, func(t *testing.T) {
			fx := newFixture()
			fx.flasher.Source = src

			r := fx.run(t)
			if r.Stage != StageValidate || r.ExitCode() != 1 {
				t.Fatalf("Run() = %v / %v", r.Stage, r.Err)
			}
			if fx.bus.finds != 0 || len(fx.bus.opened) != 0 || fx.session.flashes != 0 || fx.session.gos != 0 {
				t.Error("device touched after validation failure")
			}
		})
	}
}

func TestRunNotFound(t *testing.T) {
	fx := newFixture()
	fx.bus.found = nil

	r := fx.run(t)
	if r.Stage != StageNotFound || r.ExitCode() != 1 {
		t.Fatalf("Run() = %v / %v", r.Stage, r.Err)
	}
	if !jujuerrors.IsNotFound(r.Err) {
		t.Errorf("error %v is not a not-found error", r.Err)
	}
	if !strings.Contains(r.Message(), "not found") {
		t.Errorf("Message() = %q", r.Message())
	}
	if len(fx.bus.opened) != 0 || fx.session.closes != 0 {
		t.Error("a handle was created")
	}
}

func TestRunDiscoveryError(t *testing.T) {
	fx := newFixture()
	fx.bus.findErr = &samba.DiscoveryError{Transport: samba.TransportUSB, Err: errors.New("libusb: access denied")}

	r := fx.run(t)
	if r.Stage != StageDiscover {
		t.Fatalf("Run() = %v / %v", r.Stage, r.Err)
	}
	if len(fx.bus.opened) != 0 {
		t.Error("opened after discovery failure")
	}
}

func TestRunOpensFirst(t *testing.T) {
	fx := newFixture()
	second := brick
	second.Path = "/dev/ttyACM1"
	fx.bus.found = []samba.Descriptor{brick, second}

	if r := fx.run(t); !r.OK() {
		t.Fatalf("Run() = %v / %v", r.Stage, r.Err)
	}
	if len(fx.bus.opened) != 1 || fx.bus.opened[0] != brick {
		t.Errorf("opened %v", fx.bus.opened)
	}
}

func TestRunOpenError(t *testing.T) {
	fx := newFixture()
	fx.bus.openErr = errors.New("device busy")

	r := fx.run(t)
	if r.Stage != StageOpen {
		t.Fatalf("Run() = %v / %v", r.Stage, r.Err)
	}
	if fx.session.closes != 0 || fx.session.flashes != 0 {
		t.Error("session used without a handle")
	}
}

func TestRunReleasesAfterFailure(t *testing.T) {
	flashErr := errors.New("PROGE")
	goErr := errors.New("write timeout")

	tests := []struct {
		name     string
		session  fakeSession
		stage    Stage
		cause    error
		wantGo   int
		wantText string
	}{
		{"flash", fakeSession{flashErr: flashErr}, StageFlash, flashErr, 0, "Error: flash: PROGE"},
		{"flash and release", fakeSession{flashErr: flashErr, closeErr: errors.New("gone")}, StageFlash, flashErr, 0, "Error: flash: PROGE"},
		{"execute", fakeSession{goErr: goErr}, StageExecute, goErr, 1, "Error: execute: write timeout"},
		{"execute and release", fakeSession{goErr: goErr, closeErr: errors.New("gone")}, StageExecute, goErr, 1, "Error: execute: write timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture()
			session := tt.session
			fx.bus.session = &session

			r := fx.run(t)
			if r.Stage != tt.stage || !errors.Is(r.Err, tt.cause) {
				t.Fatalf("Run() = %v / %v", r.Stage, r.Err)
			}
			if session.closes != 1 {
				t.Errorf("released %d times, want 1", session.closes)
			}
			if session.gos != tt.wantGo {
				t.Errorf("go called %d times", session.gos)
			}
			if r.Message() != tt.wantText {
				t.Errorf("Message() = %q", r.Message())
			}
		})
	}
}

func TestRunReleaseError(t *testing.T) {
	fx := newFixture()
	fx.session.closeErr = errors.New("close failed")

	r := fx.run(t)
	if r.Stage != StageRelease || r.ExitCode() != 1 {
		t.Fatalf("Run() = %v / %v", r.Stage, r.Err)
	}
	if fx.session.closes != 1 {
		t.Errorf("released %d times", fx.session.closes)
	}
	if !strings.Contains(fx.out.String(), "New firmware started!") {
		t.Error("execution not reported before release failure")
	}
}

func TestRunArgs(t *testing.T) {
	for _, args := range [][]string{nil, {"a.rfw", "b.rfw"}} {
		fx := newFixture()
		r := fx.flasher.RunArgs(context.Background(), args)
		if r.Stage != StageUsage || r.ExitCode() != 1 {
			t.Errorf("RunArgs(%q) = %v / %v", args, r.Stage, r.Err)
		}
		if fx.source.calls != 0 {
			t.Error("image read despite usage error")
		}
	}

	fx := newFixture()
	if r := fx.flasher.RunArgs(context.Background(), []string{"a.rfw"}); !r.OK() {
		t.Errorf("RunArgs = %v / %v", r.Stage, r.Err)
	}
}

func TestStageString(t *testing.T) {
	if StageNotFound.String() != "not found" || Stage(42).String() != "Stage(42)" {
		t.Error("unexpected stage names")
	}
}
