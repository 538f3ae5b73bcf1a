package scene

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vec3 三维向量（位置、欧拉角、缩放）
type Vec3 struct {
	X, Y, Z float64
}

// One 单位缩放
var One = Vec3{1, 1, 1}

// Add 返回 v + o
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub 返回 v - o
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Mul 逐分量相乘
func (v Vec3) Mul(o Vec3) Vec3 { return Vec3{v.X * o.X, v.Y * o.Y, v.Z * o.Z} }

// Scale 返回 v * k
func (v Vec3) Scale(k float64) Vec3 { return Vec3{v.X * k, v.Y * k, v.Z * k} }

// Lerp 线性插值，t 不做截断（回弹类缓动需要越界）
func (v Vec3) Lerp(to Vec3, t float64) Vec3 {
	return Vec3{
		X: v.X + (to.X-v.X)*t,
		Y: v.Y + (to.Y-v.Y)*t,
		Z: v.Z + (to.Z-v.Z)*t,
	}
}

// ApproxEqual 在容差 eps 内比较
func (v Vec3) ApproxEqual(o Vec3, eps float64) bool {
	return math.Abs(v.X-o.X) <= eps && math.Abs(v.Y-o.Y) <= eps && math.Abs(v.Z-o.Z) <= eps
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// UnmarshalYAML 支持 [x, y, z]（可省略尾部分量）和 {x:, y:, z:} 两种写法
func (v *Vec3) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var xs []float64
		if err := node.Decode(&xs); err != nil {
			return err
		}
		if len(xs) == 0 || len(xs) > 3 {
			return fmt.Errorf("line %d: vector needs 1 to 3 components, got %d", node.Line, len(xs))
		}
		*v = Vec3{}
		dst := []*float64{&v.X, &v.Y, &v.Z}
		for i, x := range xs {
			*dst[i] = x
		}
		return nil
	case yaml.MappingNode:
		var m struct {
			X float64 `yaml:"x"`
			Y float64 `yaml:"y"`
			Z float64 `yaml:"z"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		*v = Vec3{m.X, m.Y, m.Z}
		return nil
	case yaml.ScalarNode:
		// 单个数字表示三个分量相同（常用于缩放）
		var k float64
		if err := node.Decode(&k); err != nil {
			return err
		}
		*v = Vec3{k, k, k}
		return nil
	}
	return fmt.Errorf("line %d: invalid vector", node.Line)
}

// Color RGBA 颜色，分量范围 0..1
type Color struct {
	R, G, B, A float64
}

// White 不透明白色
var White = Color{1, 1, 1, 1}

// Lerp 逐分量线性插值
func (c Color) Lerp(to Color, t float64) Color {
	return Color{
		R: c.R + (to.R-c.R)*t,
		G: c.G + (to.G-c.G)*t,
		B: c.B + (to.B-c.B)*t,
		A: c.A + (to.A-c.A)*t,
	}
}

// WithAlpha 返回替换透明度后的颜色
func (c Color) WithAlpha(a float64) Color {
	c.A = a
	return c
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// RGBA 实现 color.Color（预乘透明度）
func (c Color) RGBA() (r, g, b, a uint32) {
	alpha := clamp01(c.A)
	a = uint32(alpha * 0xffff)
	r = uint32(clamp01(c.R) * alpha * 0xffff)
	g = uint32(clamp01(c.G) * alpha * 0xffff)
	b = uint32(clamp01(c.B) * alpha * 0xffff)
	return
}

// ParseHexColor 解析 "#rrggbb" 或 "#rrggbbaa"
func ParseHexColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return Color{}, fmt.Errorf("invalid hex color %q", s)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	if len(hex) == 6 {
		n = n<<8 | 0xff
	}
	return Color{
		R: float64(n>>24&0xff) / 255,
		G: float64(n>>16&0xff) / 255,
		B: float64(n>>8&0xff) / 255,
		A: float64(n&0xff) / 255,
	}, nil
}

// UnmarshalYAML 支持 [r, g, b, a]、{r:, g:, b:, a:} 和 "#rrggbb[aa]"
// 省略的透明度默认为 1。
func (c *Color) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		parsed, err := ParseHexColor(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*c = parsed
		return nil
	case yaml.SequenceNode:
		var xs []float64
		if err := node.Decode(&xs); err != nil {
			return err
		}
		if len(xs) != 3 && len(xs) != 4 {
			return fmt.Errorf("line %d: color needs 3 or 4 components, got %d", node.Line, len(xs))
		}
		*c = Color{R: xs[0], G: xs[1], B: xs[2], A: 1}
		if len(xs) == 4 {
			c.A = xs[3]
		}
		return nil
	case yaml.MappingNode:
		m := struct {
			R float64  `yaml:"r"`
			G float64  `yaml:"g"`
			B float64  `yaml:"b"`
			A *float64 `yaml:"a"`
		}{}
		if err := node.Decode(&m); err != nil {
			return err
		}
		*c = Color{R: m.R, G: m.G, B: m.B, A: 1}
		if m.A != nil {
			c.A = *m.A
		}
		return nil
	}
	return fmt.Errorf("line %d: invalid color", node.Line)
}
