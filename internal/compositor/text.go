package compositor

import (
	"context"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/lectern-app/lectern/internal/doc"
	"github.com/lectern-app/lectern/internal/geom"
)

// driftTolerance is the relative deviation between a run's declared width
// and its measured live extent below which no compensating transform is
// applied. Sub-percent drift is invisible; correcting it would only churn
// the layer.
const driftTolerance = 0.01

func (c *Compositor) buildTextLayer(ctx context.Context, page doc.Page, scale float64) ([]TextFragment, error) {
	runs, err := page.TextGeometry()
	if err != nil {
		return nil, err
	}
	frags := make([]TextFragment, 0, len(runs))
	for i, run := range runs {
		if i%128 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if run.Text == "" {
			continue
		}
		// advance is the declared extent along the writing axis; the box
		// swaps advance and cross extent for vertical runs.
		advance := run.Width * scale
		cross := run.FontSize * scale
		w, h := advance, cross
		if run.Vertical {
			w, h = cross, advance
		}
		frag := TextFragment{
			Text: run.Text,
			Rect: geom.Rect{
				X: run.Origin.X * scale,
				Y: run.Origin.Y * scale,
				W: w,
				H: h,
			},
			ScaleX:   1,
			ScaleY:   1,
			Vertical: run.Vertical,
		}
		// The live layer can render a run wider or narrower than the
		// geometry declares (font substitution, metric rounding). When
		// the drift exceeds tolerance, squeeze or stretch along the
		// run's own axis so selection boxes stay glued to the pixels.
		// Rotated runs are left alone: a single-axis factor would shear
		// them.
		if run.AxisAligned() {
			measured := c.measure(run.Text, run.FontSize, scale)
			if measured > 0 && advance > 0 {
				factor := advance / measured
				if math.Abs(1-factor) > driftTolerance {
					if run.Vertical {
						frag.ScaleY = factor
					} else {
						frag.ScaleX = factor
					}
				}
			}
		}
		frags = append(frags, frag)
	}
	return frags, nil
}

// faceMeasure is the default TextMeasurer, backed by the same fixed face
// the raster painter draws with, so declared and measured extents agree
// unless the geometry itself is off.
func faceMeasure(text string, fontSize, scale float64) float64 {
	adv := font.MeasureString(basicfont.Face7x13, text)
	px := float64(adv) / 64
	if fontSize <= 0 {
		fontSize = 13
	}
	return px * (fontSize / 13) * scale
}
