package firmware

import (
	"context"
	"fmt"

	"github.com/juju/errors"
)

// NXT flash geometry.
const (
	PageSize = 256
	MaxPages = 1024
	MaxSize  = PageSize * MaxPages
)

// ValidationError describes why an image was rejected.
type ValidationError struct {
	Size   int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid firmware (%d bytes): %s", e.Size, e.Reason)
}

// Image is a firmware blob that passed Validate. The zero value is not valid
// and is refused by every device session.
type Image struct {
	data  []byte
	valid bool
}

// Validate checks that data can be written to the brick's flash.
// The returned Image keeps its own copy of data.
func Validate(data []byte) (Image, error) {
	switch {
	case len(data) == 0:
		return Image{}, &ValidationError{Size: 0, Reason: "image is empty"}
	case len(data) > MaxSize:
		return Image{}, &ValidationError{
			Size:   len(data),
			Reason: fmt.Sprintf("image exceeds the %d byte flash", MaxSize),
		}
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return Image{data: buf, valid: true}, nil
}

// Load reads path from src and validates the result.
func Load(ctx context.Context, src Source, path string) (Image, error) {
	data, err := src.ReadImage(ctx, path)
	if err != nil {
		return Image{}, errors.Annotatef(err, "read %s", path)
	}
	return Validate(data)
}

// Valid reports whether the image came from Validate.
func (i Image) Valid() bool { return i.valid }

// Len is the image size in bytes.
func (i Image) Len() int { return len(i.data) }

// Bytes returns the raw image. Callers must not modify it.
func (i Image) Bytes() []byte { return i.data }

// Pages is the number of flash pages the image occupies.
func (i Image) Pages() int {
	return (len(i.data) + PageSize - 1) / PageSize
}

// Page returns page n, zero padded to PageSize.
func (i Image) Page(n int) []byte {
	page := make([]byte, PageSize)
	start := n * PageSize
	if start < 0 || start >= len(i.data) {
		return page
	}
	copy(page, i.data[start:])
	return page
}
