package app

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/gonewx/playnodes/pkg/scene"
)

var backgroundColor = color.RGBA{R: 32, G: 36, B: 48, A: 255}

// renderer 用 1x1 白色图片绘制图形矩形
type renderer struct {
	pixel *ebiten.Image
}

func newRenderer() *renderer {
	return &renderer{}
}

func (r *renderer) drawWorld(screen *ebiten.Image, w *scene.World) {
	if r.pixel == nil {
		r.pixel = ebiten.NewImage(1, 1)
		r.pixel.Fill(color.White)
	}
	screen.Fill(backgroundColor)

	for _, o := range w.Objects() {
		if !o.ActiveInHierarchy() {
			continue
		}
		t := o.Transform()
		if t == nil {
			continue
		}
		pos := t.WorldPosition()
		if g, ok := scene.Get[*scene.Graphic](o); ok {
			r.drawGraphic(screen, g, t, scene.GroupAlpha(o))
		}
		if p, ok := scene.Get[*scene.ParticleEmitter](o); ok {
			drawParticles(screen, p, pos)
		}
	}
}

// drawGraphic 以 Transform 的世界位置为中心绘制矩形
func (r *renderer) drawGraphic(screen *ebiten.Image, g *scene.Graphic, t *scene.Transform, groupAlpha float64) {
	scale := t.WorldScale()
	pos := t.WorldPosition()

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(g.Width*scale.X, g.Height*scale.Y)
	op.GeoM.Translate(-g.Width*scale.X/2, -g.Height*scale.Y/2)
	op.GeoM.Rotate(t.WorldRotationZ() * math.Pi / 180)
	op.GeoM.Translate(pos.X, pos.Y)
	op.ColorScale.ScaleWithColor(g.Color)
	op.ColorScale.ScaleAlpha(float32(groupAlpha))
	screen.DrawImage(r.pixel, op)
}

// drawParticles 存活粒子按年龄绘制成围绕发射器的圆点
func drawParticles(screen *ebiten.Image, p *scene.ParticleEmitter, pos scene.Vec3) {
	n := p.Alive()
	for i := 0; i < n; i++ {
		angle := float64(i) * 2 * math.Pi / float64(n)
		radius := 8 + 4*float64(i%4)
		x := pos.X + radius*math.Cos(angle)
		y := pos.Y + radius*math.Sin(angle)
		vector.DrawFilledCircle(screen, float32(x), float32(y), 2, color.RGBA{R: 255, G: 210, B: 80, A: 255}, true)
	}
}

func (r *renderer) drawStatus(screen *ebiten.Image, lines []string) {
	ebitenutil.DebugPrint(screen, strings.Join(lines, "\n"))
}

// statusLines 状态文本：播放器、轨道与预览状态
func (a *App) statusLines() []string {
	lines := []string{
		"1-9 play  Tab player  P preview  S stop preview  Esc cancel  R reload",
		fmt.Sprintf("status: %s", a.status),
	}
	if name := a.session.IsPreviewingName(); name != "" {
		lines = append(lines, fmt.Sprintf("previewing: %s", name))
	}
	for i, p := range a.players {
		marker := " "
		if i == a.selected {
			marker = ">"
		}
		state := ""
		if p.IsPlaying() {
			state = " (playing)"
		}
		lines = append(lines, fmt.Sprintf("%s %s%s", marker, p.Key(), state))
		if i != a.selected {
			continue
		}
		last := a.cfg.Prefs.LastPreviewed(p.Key())
		for ti, t := range p.Tracks() {
			note := ""
			if t.Name == last {
				note = " *"
			}
			if !t.Active {
				note += " (inactive)"
			}
			lines = append(lines, fmt.Sprintf("    %d %s%s", ti+1, t.Name, note))
		}
	}
	return lines
}
