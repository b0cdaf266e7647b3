// Package vis renders training batches and training curves for visual
// inspection: annotated target overlays as PNG files and loss/LR/mAP plots
// over epochs.
package vis

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/YuminosukeSato/godet/detection"
	"github.com/YuminosukeSato/godet/pkg/errors"
)

// ClassColor returns a stable, saturated color for a class label. Labels
// are spread around the hue circle so neighboring class ids stay visually
// distinct.
func ClassColor(label int) color.NRGBA {
	h := float64((label*47)%360)
	c := colorful.Hsv(h, 0.85, 0.95)
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// ImageToNRGBA converts image i of a batch to an 8-bit RGB image. Batches
// with fewer than three channels replicate the first channel; normalized
// batches are mapped back to [0, 255].
func ImageToNRGBA(b *detection.ImageBatch, i int) *image.NRGBA {
	size := b.Size()
	out := image.NewNRGBA(image.Rect(0, 0, size, size))
	scale := 1.0
	if b.Normalized() {
		scale = 255.0
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			var rgb [3]uint8
			for ch := 0; ch < 3; ch++ {
				src := ch
				if src >= b.Channels() {
					src = 0
				}
				v := b.Plane(i, src).At(y, x) * scale
				if v < 0 {
					v = 0
				} else if v > 255 {
					v = 255
				}
				rgb[ch] = uint8(v)
			}
			out.SetNRGBA(x, y, color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255})
		}
	}
	return out
}

// DrawTarget overlays the target boxes of one image, colored by class.
// Boxes are corner-encoded in pixels.
func DrawTarget(img *image.NRGBA, tgt *detection.Target) {
	for i := 0; i < tgt.NumBoxes(); i++ {
		col := ClassColor(tgt.Labels[i])
		x1 := int(tgt.Boxes.At(i, 0))
		y1 := int(tgt.Boxes.At(i, 1))
		x2 := int(tgt.Boxes.At(i, 2))
		y2 := int(tgt.Boxes.At(i, 3))
		drawRect(img, x1, y1, x2, y2, col)
	}
}

const borderWidth = 2

func drawRect(img *image.NRGBA, x1, y1, x2, y2 int, col color.NRGBA) {
	bounds := img.Bounds()
	set := func(x, y int) {
		if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
			img.SetNRGBA(x, y, col)
		}
	}
	for w := 0; w < borderWidth; w++ {
		for x := x1; x <= x2; x++ {
			set(x, y1+w)
			set(x, y2-w)
		}
		for y := y1; y <= y2; y++ {
			set(x1+w, y)
			set(x2-w, y)
		}
	}
}

// SaveBatch writes one annotated PNG per image of the batch under dir,
// named <prefix>_<i>.png, and returns the written paths.
func SaveBatch(images *detection.ImageBatch, targets []*detection.Target, dir, prefix string) ([]string, error) {
	paths := make([]string, 0, images.Len())
	for i := 0; i < images.Len(); i++ {
		img := ImageToNRGBA(images, i)
		if i < len(targets) && targets[i] != nil {
			DrawTarget(img, targets[i])
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%d.png", prefix, i))
		if err := imaging.Save(img, path); err != nil {
			return nil, errors.Wrapf(err, "save target overlay %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
