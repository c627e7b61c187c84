//go:build !windows

package firmware

import (
	"context"
	"os"

	"github.com/juju/errors"
)

// DefaultSource reads images with the os package.
var DefaultSource Source = FileSource{}

// FileSource reads images from the local filesystem.
type FileSource struct{}

func (FileSource) ReadImage(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return data, nil
}
