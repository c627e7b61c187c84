// nxtflash writes a firmware image to a LEGO NXT brick in reset (SAM-BA)
// mode and starts it.
//
// Usage:
//
//	nxtflash [--transport serial|usb] [--verify] firmware.rfw
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"github.com/spf13/cobra"

	samba "github.com/tocurd/go-samba"
	"github.com/tocurd/go-samba/firmware"
	"github.com/tocurd/go-samba/flasher"
)

var (
	transportFlag    string
	readTimeoutFlag  time.Duration
	flashTimeoutFlag time.Duration
	verifyFlag       bool
	noProgressFlag   bool
)

// runError carries a failed run's result out of the command so main can
// pick the message and exit code.
type runError struct {
	result flasher.Result
}

func (e *runError) Error() string {
	return e.result.Message()
}

func (e *runError) Unwrap() error {
	return e.result.Err
}

var rootCmd = &cobra.Command{
	Use:   "nxtflash <firmware>",
	Short: "Flash firmware onto a LEGO NXT in reset mode",
	Long: `nxtflash validates a firmware image, opens the first NXT brick found in
reset (SAM-BA boot monitor) mode, writes the image to flash and starts it.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// glog reads its settings from the standard flag set.
		return flag.CommandLine.Parse(nil)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		bus, err := newBus(transportFlag, busOptions()...)
		if err != nil {
			return err
		}
		progress := newConsoleProgress(cmd.OutOrStdout(), !noProgressFlag && isTerminal(os.Stdout))
		f := &flasher.Flasher{
			Source:   firmware.DefaultSource,
			Bus:      bus,
			Progress: samba.Multi(progress, logProgress{}),
			Out:      cmd.OutOrStdout(),
		}
		result := f.RunArgs(cmd.Context(), args)
		progress.Finish()
		if !result.OK() {
			return &runError{result: result}
		}
		return nil
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&transportFlag, "transport", "t", samba.TransportSerial, "device transport: serial or usb")
	flags.DurationVar(&readTimeoutFlag, "read-timeout", 2*time.Second, "timeout for a single boot monitor reply")
	flags.DurationVar(&flashTimeoutFlag, "flash-timeout", 5*time.Second, "timeout for a single flash controller command")
	flags.BoolVar(&verifyFlag, "verify", false, "read every page back after writing it")
	flags.BoolVar(&noProgressFlag, "no-progress", false, "do not draw a progress bar")

	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

func busOptions() []samba.Option {
	return []samba.Option{
		samba.WithReadTimeout(readTimeoutFlag),
		samba.WithFlashTimeout(flashTimeoutFlag),
		samba.WithVerify(verifyFlag),
	}
}

func newBus(transport string, opts ...samba.Option) (samba.Bus, error) {
	switch transport {
	case samba.TransportSerial:
		return samba.NewSerialBus(opts...), nil
	case samba.TransportUSB:
		return samba.NewUSBBus(opts...), nil
	}
	return nil, errors.NotValidf("transport %q", transport)
}

// exitStatus reports err on stderr and returns the process exit code.
func exitStatus(stderr io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var re *runError
	if stderrors.As(err, &re) {
		glog.V(1).Infof("run failed at %s: %s", re.result.Stage, errors.ErrorStack(re.result.Err))
		fmt.Fprintln(stderr, re.result.Message())
		return re.result.ExitCode()
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	code := exitStatus(os.Stderr, err)
	glog.Flush()
	os.Exit(code)
}
