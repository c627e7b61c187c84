package main

import (
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"golang.org/x/term"
	"gopkg.in/cheggaaa/pb.v1"
)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// consoleProgress draws a pb bar on a terminal and a single summary line
// otherwise.
type consoleProgress struct {
	out   io.Writer
	tty   bool
	bar   *pb.ProgressBar
	total int
	done  int
	ended bool
}

func newConsoleProgress(out io.Writer, tty bool) *consoleProgress {
	return &consoleProgress{out: out, tty: tty}
}

func (c *consoleProgress) Start(total int) {
	c.total, c.done, c.ended = total, 0, false
	if !c.tty {
		return
	}
	c.bar = pb.New(total)
	c.bar.Output = c.out
	c.bar.ShowTimeLeft = false
	c.bar.SetMaxWidth(80)
	c.bar.Prefix("flashing ")
	c.bar.Start()
}

func (c *consoleProgress) Report(done int) {
	c.done = done
	if c.bar != nil {
		c.bar.Set(done)
	}
	if done >= c.total {
		c.end()
	}
}

// Finish closes an interrupted transfer.
func (c *consoleProgress) Finish() {
	if c.total > 0 {
		c.end()
	}
}

func (c *consoleProgress) end() {
	if c.ended {
		return
	}
	c.ended = true
	if c.bar != nil {
		c.bar.Finish()
		c.bar = nil
		return
	}
	if c.done >= c.total {
		fmt.Fprintf(c.out, "Wrote %d pages.\n", c.total)
		return
	}
	fmt.Fprintf(c.out, "Stopped after %d of %d pages.\n", c.done, c.total)
}

// logProgress traces the transfer in the glog log: the total at -v=1 and
// every page at -v=2.
type logProgress struct{}

func (logProgress) Start(total int) {
	glog.V(1).Infof("flashing %d pages", total)
}

func (logProgress) Report(done int) {
	glog.V(2).Infof("page %d written", done)
}
