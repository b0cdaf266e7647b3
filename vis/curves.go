package vis

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/godet/pkg/errors"
)

// History accumulates per-epoch training statistics for plotting. It is
// filled by the caller at epoch boundaries; the zero value is ready to use.
type History struct {
	losses plotter.XYs
	lrs    plotter.XYs
	maps   plotter.XYs
}

// Record appends the epoch's mean loss and learning rate.
func (h *History) Record(epoch int, loss, lr float64) {
	h.losses = append(h.losses, plotter.XY{X: float64(epoch), Y: loss})
	h.lrs = append(h.lrs, plotter.XY{X: float64(epoch), Y: lr})
}

// RecordEval appends an evaluation result. Eval epochs are sparser than
// training epochs, so mAP keeps its own series.
func (h *History) RecordEval(epoch int, mAP float64) {
	h.maps = append(h.maps, plotter.XY{X: float64(epoch), Y: mAP})
}

// Len returns the number of recorded training epochs.
func (h *History) Len() int { return len(h.losses) }

func savePlot(path, title, yLabel string, series plotter.XYs, col color.RGBA) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = yLabel

	line, err := plotter.NewLine(series)
	if err != nil {
		return errors.Wrapf(err, "plot %s", title)
	}
	line.Color = col
	p.Add(plotter.NewGrid(), line)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}

// SaveLossCurve writes the loss-over-epochs plot as PNG.
func (h *History) SaveLossCurve(path string) error {
	return savePlot(path, "training loss", "loss", h.losses, color.RGBA{R: 214, G: 69, B: 65, A: 255})
}

// SaveLRCurve writes the learning-rate schedule plot as PNG.
func (h *History) SaveLRCurve(path string) error {
	return savePlot(path, "learning rate", "lr", h.lrs, color.RGBA{R: 52, G: 152, B: 219, A: 255})
}

// SaveMAPCurve writes the evaluation mAP plot as PNG. An empty history is
// an error; plots without points render as blank canvases and hide bugs.
func (h *History) SaveMAPCurve(path string) error {
	if len(h.maps) == 0 {
		return errors.New("no evaluation results recorded")
	}
	return savePlot(path, "validation mAP", "mAP", h.maps, color.RGBA{R: 39, G: 174, B: 96, A: 255})
}
