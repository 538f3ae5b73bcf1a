package animation

import (
	"fmt"

	"github.com/gonewx/playnodes/pkg/scene"
)

// 钉值覆盖的类型转换

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, fmt.Errorf("%w: pin value %T is not a number", ErrTargetType, v)
}

func toVec3(v any) (scene.Vec3, error) {
	switch x := v.(type) {
	case scene.Vec3:
		return x, nil
	case *scene.Vec3:
		if x != nil {
			return *x, nil
		}
	case []float64:
		var out scene.Vec3
		dst := []*float64{&out.X, &out.Y, &out.Z}
		for i := 0; i < len(x) && i < 3; i++ {
			*dst[i] = x[i]
		}
		return out, nil
	}
	return scene.Vec3{}, fmt.Errorf("%w: pin value %T is not a vector", ErrTargetType, v)
}

func toColor(v any) (scene.Color, error) {
	switch x := v.(type) {
	case scene.Color:
		return x, nil
	case string:
		return scene.ParseHexColor(x)
	}
	return scene.Color{}, fmt.Errorf("%w: pin value %T is not a color", ErrTargetType, v)
}

// override 可被钉值覆盖的终值
type override[T any] struct {
	value T
	set   bool
}

func (o *override[T]) apply(v any, convert func(any) (T, error)) error {
	if v == nil {
		o.set = false
		return nil
	}
	val, err := convert(v)
	if err != nil {
		return err
	}
	o.value, o.set = val, true
	return nil
}

func (o *override[T]) or(authored T) T {
	if o.set {
		return o.value
	}
	return authored
}
