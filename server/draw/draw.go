// Package draw renders tracking state on top of video frames, for snapshot
// endpoints and debugging.
package draw

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"

	"github.com/footfall/footfall/server/track"
)

type rgba struct {
	r, g, b, a float64
}

var (
	colorPerson    = rgba{0.1, 0.9, 0.2, 1}
	colorUmbrella  = rgba{0.2, 0.5, 1, 1}
	colorComposite = rgba{1, 0.8, 0.1, 1}
	colorLine      = rgba{1, 0.2, 0.2, 1}
	colorTrail     = rgba{1, 1, 1, 0.6}
	colorBanner    = rgba{0, 0, 0, 0.6}
	colorText      = rgba{1, 1, 1, 1}
)

func classColor(tv *track.TrackView) rgba {
	if tv.CompositeID != 0 {
		return colorComposite
	}
	if tv.Class == "umbrella" {
		return colorUmbrella
	}
	return colorPerson
}

// Annotate draws boxes, trails, boundary lines and totals over a copy of
// the frame. The input image is not modified.
func Annotate(img image.Image, lines []track.Line, state *track.FrameResult) image.Image {
	dc := gg.NewContextForImage(img)

	for i := range lines {
		drawBoundaryLine(dc, &lines[i], state)
	}
	if state != nil {
		for i := range state.Tracks {
			drawTrack(dc, &state.Tracks[i])
		}
		drawBanner(dc, state)
	}
	return dc.Image()
}

func drawBoundaryLine(dc *gg.Context, line *track.Line, state *track.FrameResult) {
	c := colorLine
	dc.SetRGBA(c.r, c.g, c.b, c.a)
	dc.SetLineWidth(2)
	dc.DrawLine(float64(line.X1), float64(line.Y1), float64(line.X2), float64(line.Y2))
	dc.Stroke()

	label := fmt.Sprintf("line %v", line.ID)
	if state != nil {
		t := state.Totals[line.ID]
		label = fmt.Sprintf("line %v: in %v out %v", line.ID, t.Entries, t.Exits)
	}
	midX := float64(line.X1+line.X2) / 2
	midY := float64(line.Y1+line.Y2) / 2
	dc.DrawStringAnchored(label, midX, midY-8, 0.5, 0.5)
}

func drawTrack(dc *gg.Context, tv *track.TrackView) {
	c := classColor(tv)

	// Trail, oldest to newest
	if len(tv.Trail) > 1 {
		dc.SetRGBA(colorTrail.r, colorTrail.g, colorTrail.b, colorTrail.a)
		dc.SetLineWidth(1)
		dc.MoveTo(float64(tv.Trail[0].X), float64(tv.Trail[0].Y))
		for _, p := range tv.Trail[1:] {
			dc.LineTo(float64(p.X), float64(p.Y))
		}
		dc.Stroke()
	}

	dc.SetRGBA(c.r, c.g, c.b, c.a)
	dc.SetLineWidth(2)
	dc.DrawRectangle(float64(tv.Box.X), float64(tv.Box.Y), float64(tv.Box.Width), float64(tv.Box.Height))
	dc.Stroke()

	label := fmt.Sprintf("%v %v", tv.Class, tv.ID)
	if tv.CompositeID != 0 {
		label += fmt.Sprintf(" c%v", tv.CompositeID)
	}
	if tv.Misses > 0 {
		label += fmt.Sprintf(" ?%v", tv.Misses)
	}
	dc.DrawStringAnchored(label, float64(tv.Box.X), float64(tv.Box.Y)-6, 0, 0.5)

	dc.DrawCircle(float64(tv.Centroid.X), float64(tv.Centroid.Y), 2.5)
	dc.Fill()
}

func drawBanner(dc *gg.Context, state *track.FrameResult) {
	entries := int64(0)
	exits := int64(0)
	for _, t := range state.Totals {
		entries += t.Entries
		exits += t.Exits
	}
	text := fmt.Sprintf("tracks %v  in %v  out %v", len(state.Tracks), entries, exits)

	w, h := dc.MeasureString(text)
	dc.SetRGBA(colorBanner.r, colorBanner.g, colorBanner.b, colorBanner.a)
	dc.DrawRectangle(0, 0, w+16, h+12)
	dc.Fill()
	dc.SetRGBA(colorText.r, colorText.g, colorText.b, colorText.a)
	dc.DrawStringAnchored(text, 8, (h+12)/2, 0, 0.5)
}
