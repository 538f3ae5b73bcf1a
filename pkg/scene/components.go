package scene

import "math"

// 组件类型名，用于配置文件中的绑定与 ComponentByKind 查找
const (
	KindTransform   = "transform"
	KindGraphic     = "graphic"
	KindCanvasGroup = "canvas_group"
	KindParticles   = "particles"
)

// Transform 局部变换
//
// Rotation 为欧拉角（度），平面渲染只使用 Z 分量。
type Transform struct {
	ComponentBase
	Position Vec3
	Rotation Vec3
	Scale    Vec3
}

// NewTransform 创建单位变换
func NewTransform() *Transform {
	return &Transform{Scale: One}
}

// Kind 返回 "transform"
func (t *Transform) Kind() string { return KindTransform }

func (t *Transform) saveState() func() {
	pos, rot, scale := t.Position, t.Rotation, t.Scale
	return func() {
		t.Position, t.Rotation, t.Scale = pos, rot, scale
	}
}

// parentTransform 返回最近的带 Transform 的祖先
func (t *Transform) parentTransform() *Transform {
	if t.owner == nil {
		return nil
	}
	for p := t.owner.parent; p != nil; p = p.parent {
		if pt := p.Transform(); pt != nil {
			return pt
		}
	}
	return nil
}

// WorldScale 返回累积缩放
func (t *Transform) WorldScale() Vec3 {
	if p := t.parentTransform(); p != nil {
		return p.WorldScale().Mul(t.Scale)
	}
	return t.Scale
}

// WorldRotationZ 返回累积的 Z 轴旋转（度）
func (t *Transform) WorldRotationZ() float64 {
	if p := t.parentTransform(); p != nil {
		return p.WorldRotationZ() + t.Rotation.Z
	}
	return t.Rotation.Z
}

// WorldPosition 返回世界坐标
// 父级的缩放与 Z 轴旋转作用于局部位置。
func (t *Transform) WorldPosition() Vec3 {
	p := t.parentTransform()
	if p == nil {
		return t.Position
	}
	local := t.Position.Mul(p.WorldScale())
	rad := p.WorldRotationZ() * math.Pi / 180
	sin, cos := math.Sincos(rad)
	rotated := Vec3{
		X: local.X*cos - local.Y*sin,
		Y: local.X*sin + local.Y*cos,
		Z: local.Z,
	}
	return p.WorldPosition().Add(rotated)
}

// Graphic 可绘制的矩形色块（UI 图形的最小模型）
type Graphic struct {
	ComponentBase
	Color  Color
	Width  float64
	Height float64

	redraws int
}

// NewGraphic 创建白色图形
func NewGraphic(width, height float64) *Graphic {
	return &Graphic{Color: White, Width: width, Height: height}
}

// Kind 返回 "graphic"
func (g *Graphic) Kind() string { return KindGraphic }

// Alpha 返回颜色透明度
func (g *Graphic) Alpha() float64 { return g.Color.A }

// SetAlpha 设置颜色透明度
func (g *Graphic) SetAlpha(a float64) { g.Color.A = a }

// SetDirty 请求重绘（预览时每帧强制刷新）
func (g *Graphic) SetDirty() { g.redraws++ }

// Redraws 返回重绘请求次数
func (g *Graphic) Redraws() int { return g.redraws }

func (g *Graphic) saveState() func() {
	c, w, h := g.Color, g.Width, g.Height
	return func() {
		g.Color, g.Width, g.Height = c, w, h
	}
}

// CanvasGroup 作用于对象及其子孙的整体透明度
type CanvasGroup struct {
	ComponentBase
	Alpha float64
}

// NewCanvasGroup 创建不透明的 CanvasGroup
func NewCanvasGroup() *CanvasGroup {
	return &CanvasGroup{Alpha: 1}
}

// Kind 返回 "canvas_group"
func (c *CanvasGroup) Kind() string { return KindCanvasGroup }

func (c *CanvasGroup) saveState() func() {
	a := c.Alpha
	return func() { c.Alpha = a }
}

// GroupAlpha 返回 o 及其祖先上所有 CanvasGroup 透明度的乘积
func GroupAlpha(o *Object) float64 {
	alpha := 1.0
	for cur := o; cur != nil; cur = cur.parent {
		if cg, ok := Get[*CanvasGroup](cur); ok {
			alpha *= cg.Alpha
		}
	}
	return alpha
}
