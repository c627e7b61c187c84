package firmware

import "context"

// Source reads the raw bytes of a firmware file. The build picks the
// implementation for the platform; see DefaultSource.
type Source interface {
	ReadImage(ctx context.Context, path string) ([]byte, error)
}
