package samba

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

// Port is the byte pipe to the boot monitor. Read may return 0, nil when
// nothing arrived within the port's own poll interval.
type Port interface {
	io.ReadWriter
	Close() error
}

// send writes one command terminated by "#".
func (m *Monitor) send(ctx context.Context, cmd string) error {
	if m.port == nil {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	glog.V(3).Infof("samba: > %s", cmd)
	if _, err := m.port.Write([]byte(cmd)); err != nil {
		return errors.Annotatef(err, "write %q", cmd)
	}
	return nil
}

// readFull collects exactly n bytes or gives up after ReadTimeout.
func (m *Monitor) readFull(ctx context.Context, n int) ([]byte, error) {
	if m.port == nil {
		return nil, ErrClosed
	}
	timeout := time.After(m.config.ReadTimeout)
	buff := make([]byte, 0, n)
	temp := make([]byte, n)
	for len(buff) < n {
		select {
		case <-ctx.Done():
			return nil, errors.Trace(ctx.Err())
		case <-timeout:
			return nil, errors.Timeoutf("reply (%d of %d bytes)", len(buff), n)
		default:
			k, err := m.port.Read(temp[:n-len(buff)])
			if err != nil {
				return nil, errors.Trace(err)
			}
			buff = append(buff, temp[:k]...)
		}
	}
	glog.V(3).Infof("samba: < % X", buff)
	return buff, nil
}

// waitReady polls the flash status register until FRDY is set and returns
// the last status read.
func (m *Monitor) waitReady(ctx context.Context) (uint32, error) {
	timeout := time.After(m.config.FlashTimeout)
	for {
		select {
		case <-ctx.Done():
			return 0, errors.Trace(ctx.Err())
		case <-timeout:
			return 0, errors.Timeoutf("flash ready")
		default:
			status, err := m.ReadWord(ctx, regFSR)
			if err != nil {
				return 0, err
			}
			if status&fsrReady != 0 {
				return status, nil
			}
			time.Sleep(m.config.PollInterval)
		}
	}
}
