//go:build windows

package firmware

import (
	"context"
	"path/filepath"

	"github.com/juju/errors"
	"golang.org/x/sys/windows"
)

// DefaultSource reads images through the Win32 file API.
var DefaultSource Source = WindowsSource{}

// WindowsSource opens the file with sequential-scan hints and reads it in
// chunks. Paths are passed in their \\?\ long form.
type WindowsSource struct{}

const readChunk = 64 * 1024

func (WindowsSource) ReadImage(ctx context.Context, path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	name, err := windows.UTF16PtrFromString(longPath(abs))
	if err != nil {
		return nil, errors.Trace(err)
	}

	h, err := windows.CreateFile(name,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL|windows.FILE_FLAG_SEQUENTIAL_SCAN,
		0)
	if err != nil {
		return nil, errors.Annotatef(err, "open %s", path)
	}
	defer windows.CloseHandle(h)

	var data []byte
	buf := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		var n uint32
		if err := windows.ReadFile(h, buf, &n, nil); err != nil {
			return nil, errors.Annotatef(err, "read %s", path)
		}
		if n == 0 {
			return data, nil
		}
		data = append(data, buf[:n]...)
	}
}
