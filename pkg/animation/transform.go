package animation

import (
	"context"
	"math"

	"github.com/gonewx/playnodes/pkg/scene"
)

// vecProperty 选择 Transform 上的一个 Vec3 属性
type vecProperty func(t *scene.Transform) *scene.Vec3

func positionOf(t *scene.Transform) *scene.Vec3 { return &t.Position }
func rotationOf(t *scene.Transform) *scene.Vec3 { return &t.Rotation }
func scaleOf(t *scene.Transform) *scene.Vec3    { return &t.Scale }

// TransformTween 把 Transform 的某个向量属性从 From 补间到 To
//
// From 为空时从播放开始（延时结束）时的当前值出发；
// Relative 为 true 时 To 是相对起始值的偏移。
type TransformTween struct {
	TweenBase `yaml:",inline"`
	From      *scene.Vec3 `yaml:"from"`
	To        scene.Vec3  `yaml:"to"`
	Relative  bool        `yaml:"relative"`

	property vecProperty
	target   *scene.Transform
	pinned   override[scene.Vec3]
}

// NewMoveTransform 位移动画
func NewMoveTransform() *TransformTween {
	return &TransformTween{TweenBase: TweenBase{Base: Base{Enable: true}}, property: positionOf}
}

// NewRotateTransform 旋转动画（欧拉角，度）
func NewRotateTransform() *TransformTween {
	return &TransformTween{TweenBase: TweenBase{Base: Base{Enable: true}}, property: rotationOf}
}

// NewScaleTransform 缩放动画
func NewScaleTransform() *TransformTween {
	return &TransformTween{TweenBase: TweenBase{Base: Base{Enable: true}}, To: scene.One, property: scaleOf}
}

// SetTarget 接受任何变换类目标
func (a *TransformTween) SetTarget(target any) error {
	t, err := Bind[*scene.Transform](target)
	if err != nil {
		return err
	}
	a.target = t
	return nil
}

// Clone 复制配置
func (a *TransformTween) Clone() Animation {
	c := *a
	c.target, c.pinned = nil, override[scene.Vec3]{}
	return &c
}

// SetPinValue 覆盖终值（scene.Vec3 或 []float64）
func (a *TransformTween) SetPinValue(value any) error {
	return a.pinned.apply(value, toVec3)
}

// Play 播放补间
func (a *TransformTween) Play(ctx context.Context) error {
	if a.target == nil {
		return errUnbound(a)
	}
	prop := a.property(a.target)
	to := a.pinned.or(a.To)
	var from, end scene.Vec3
	return PlayTween(ctx, &a.TweenBase,
		func(p float64) { *prop = from.Lerp(end, p) },
		func() {
			from = *prop
			if a.From != nil {
				from = *a.From
			}
			end = to
			if a.Relative {
				end = from.Add(to)
			}
		})
}

// PunchScale 缩放冲击：围绕原始缩放按衰减正弦振动，结束时回到原始缩放
type PunchScale struct {
	TweenBase  `yaml:",inline"`
	Punch      scene.Vec3 `yaml:"punch"`
	Vibrato    int        `yaml:"vibrato"`
	Elasticity float64    `yaml:"elasticity"`

	target *scene.Transform
	pinned override[scene.Vec3]
}

// NewPunchScale 创建缩放冲击动画
func NewPunchScale() *PunchScale {
	return &PunchScale{
		TweenBase:  TweenBase{Base: Base{Enable: true, DurationSeconds: 0.3}},
		Punch:      scene.Vec3{X: 0.2, Y: 0.2, Z: 0},
		Vibrato:    4,
		Elasticity: 1,
	}
}

// Clone 复制配置
func (a *PunchScale) Clone() Animation {
	c := *a
	c.target, c.pinned = nil, override[scene.Vec3]{}
	return &c
}

// SetTarget 接受任何变换类目标
func (a *PunchScale) SetTarget(target any) error {
	t, err := Bind[*scene.Transform](target)
	if err != nil {
		return err
	}
	a.target = t
	return nil
}

// SetPinValue 覆盖冲击幅度
func (a *PunchScale) SetPinValue(value any) error {
	return a.pinned.apply(value, toVec3)
}

// Play 播放冲击
func (a *PunchScale) Play(ctx context.Context) error {
	t := a.target
	if t == nil {
		return errUnbound(a)
	}
	punch := a.pinned.or(a.Punch)
	vibrato := a.Vibrato
	if vibrato < 1 {
		vibrato = 1
	}
	var origin scene.Vec3
	return PlayTween(ctx, &a.TweenBase,
		func(p float64) {
			decay := math.Pow(math.Max(0, 1-p), math.Max(a.Elasticity, 0))
			wave := math.Sin(p * math.Pi * float64(2*vibrato))
			if p >= 1 {
				wave = 0
			}
			t.Scale = origin.Add(punch.Scale(wave * decay))
		},
		func() { origin = t.Scale })
}
