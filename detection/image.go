package detection

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/godet/pkg/errors"
)

// ImageBatch is a batch of square images stored as per-channel float planes.
// During training all images of a batch share one resolution, so the batch
// carries a single Size. Pixel values arrive in [0, 255] from the data
// loader and are normalized once by the orchestrator.
type ImageBatch struct {
	planes   []*mat.Dense // n*c planes, each size x size
	n, c     int
	size     int
	normized bool
}

// NewImageBatch allocates a zero batch of n images with c channels at the
// given square resolution.
func NewImageBatch(n, c, size int) (*ImageBatch, error) {
	if n <= 0 || c <= 0 || size <= 0 {
		return nil, errors.NewValidationError("image_batch", "dimensions must be positive", []int{n, c, size})
	}
	planes := make([]*mat.Dense, n*c)
	for i := range planes {
		planes[i] = mat.NewDense(size, size, nil)
	}
	return &ImageBatch{planes: planes, n: n, c: c, size: size}, nil
}

// Len returns the number of images in the batch.
func (b *ImageBatch) Len() int { return b.n }

// Channels returns the number of channels per image.
func (b *ImageBatch) Channels() int { return b.c }

// Size returns the square resolution in pixels.
func (b *ImageBatch) Size() int { return b.size }

// Plane returns the channel plane ch of image i.
func (b *ImageBatch) Plane(i, ch int) *mat.Dense {
	return b.planes[i*b.c+ch]
}

// Normalized reports whether pixel values have been divided by 255.
func (b *ImageBatch) Normalized() bool { return b.normized }

// Normalize divides all pixel values by 255 in place. Calling it twice is a
// no-op so the orchestrator can normalize unconditionally per iteration.
func (b *ImageBatch) Normalize() {
	if b.normized {
		return
	}
	for _, p := range b.planes {
		p.Scale(1.0/255.0, p)
	}
	b.normized = true
}

// Resize returns a fresh batch at the new square resolution using bilinear
// interpolation with half-pixel centers, matching the usual
// align_corners=false resampling. A newSize equal to the current size
// returns the receiver unchanged.
func (b *ImageBatch) Resize(newSize int) (*ImageBatch, error) {
	if newSize <= 0 {
		return nil, errors.NewValidationError("image_size", "must be positive", newSize)
	}
	if newSize == b.size {
		return b, nil
	}
	out := &ImageBatch{
		planes:   make([]*mat.Dense, len(b.planes)),
		n:        b.n,
		c:        b.c,
		size:     newSize,
		normized: b.normized,
	}
	for i, p := range b.planes {
		out.planes[i] = resizePlane(p, b.size, newSize)
	}
	return out, nil
}

func resizePlane(src *mat.Dense, oldSize, newSize int) *mat.Dense {
	dst := mat.NewDense(newSize, newSize, nil)
	scale := float64(oldSize) / float64(newSize)
	for y := 0; y < newSize; y++ {
		sy := (float64(y)+0.5)*scale - 0.5
		y0, fy := splitCoord(sy, oldSize)
		for x := 0; x < newSize; x++ {
			sx := (float64(x)+0.5)*scale - 0.5
			x0, fx := splitCoord(sx, oldSize)
			y1 := min(y0+1, oldSize-1)
			x1 := min(x0+1, oldSize-1)
			top := src.At(y0, x0)*(1-fx) + src.At(y0, x1)*fx
			bottom := src.At(y1, x0)*(1-fx) + src.At(y1, x1)*fx
			dst.Set(y, x, top*(1-fy)+bottom*fy)
		}
	}
	return dst
}

// splitCoord splits a source coordinate into its integer cell and fractional
// offset, clamped to the valid range.
func splitCoord(s float64, size int) (int, float64) {
	if s <= 0 {
		return 0, 0
	}
	if s >= float64(size-1) {
		return size - 1, 0
	}
	i := int(s)
	return i, s - float64(i)
}
