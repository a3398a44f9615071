package main

import (
	"fmt"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"expori/internal/trial"
)

// Draw renders the frame described by the session's display state.
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(g.background)
	ctx := g.ses.Context()
	d := ctx.Display
	pos := ctx.Position
	cx, cy := g.toScreen(pos.XOffset, pos.YOffset)

	if d.ShowGrating {
		g.drawGrating(screen, cx, cy, pos.Width*g.ppu, pos.Height*g.ppu, d.Orientation)
	}

	s := ctx.Settings.Experiment
	vector.DrawFilledCircle(screen, float32(cx), float32(cy), float32(s.FixationSurroundSize*g.ppu/2), g.surround, true)
	vector.DrawFilledCircle(screen, float32(cx), float32(cy), float32(s.FixationCenterSize*g.ppu/2), g.colorFor(d.FixationColor), true)

	if d.Calibration != nil {
		w, h := pos.Width*g.ppu, pos.Height*g.ppu
		vector.StrokeRect(screen, float32(cx-w/2), float32(cy-h/2), float32(w), float32(h),
			calibrationStroke, color.RGBA{255, 255, 0, 255}, true)
		g.drawText(screen, d.Calibration.Label(), cx, cy-h/2-3*textScale*13)
	}

	if d.Text != "" {
		v := ctx.Settings.Various
		tx, ty := g.toScreen(v.TextPositionX, v.TextPositionY)
		g.drawText(screen, d.Text, tx, ty)
	}

	if *debugFlag {
		g.drawDebug(screen)
	}
}

// toScreen converts degrees relative to the screen center, y up, to pixels.
func (g *Game) toScreen(x, y float64) (float64, float64) {
	return float64(g.width)/2 + x*g.ppu, float64(g.height)/2 - y*g.ppu
}

func (g *Game) drawGrating(screen *ebiten.Image, cx, cy, w, h, ori float64) {
	if g.gratingImg == nil {
		g.gratingImg = ebiten.NewImage(g.texRes, g.texRes)
		g.gratingImg.WritePixels(g.texPixels)
	}
	res := float64(g.texRes)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(-res/2, -res/2)
	op.GeoM.Scale(w/res, h/res)
	// positive orientations turn clockwise on screen
	op.GeoM.Rotate(ori * math.Pi / 180)
	op.GeoM.Translate(cx, cy)
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(g.gratingImg, op)
}

func (g *Game) drawText(screen *ebiten.Image, msg string, x, y float64) {
	op := &text.DrawOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(color.White)
	op.LineSpacing = 16 * textScale
	op.PrimaryAlign = text.AlignCenter
	op.SecondaryAlign = text.AlignCenter
	text.Draw(screen, msg, g.face, op)
}

func (g *Game) drawDebug(screen *ebiten.Image) {
	idx, n := g.ses.Progress()
	msg := fmt.Sprintf("FPS: %.1f TPS: %.1f\nTrial %d/%d", ebiten.ActualFPS(), ebiten.ActualTPS(), idx+1, n)
	if cur := g.ses.Current(); cur != nil {
		msg += fmt.Sprintf(" #%d %s", cur.Number(), cur.Kind())
		if ot, ok := cur.(*trial.OrientationTrial); ok {
			msg += fmt.Sprintf(" phase %d sign %+d", ot.Phase(), ot.Sign())
		}
	}
	msg += "\nGrating: " + g.generatorName
	ebitenutil.DebugPrint(screen, msg)
}

// Layout reports the logical screen size from window.size.
func (g *Game) Layout(_, _ int) (int, int) { return g.width, g.height }
