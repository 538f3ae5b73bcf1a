package scene

import (
	"strings"

	"github.com/gonewx/playnodes/pkg/ecs"
	"github.com/gonewx/playnodes/pkg/undo"
)

// Object 场景对象
type Object struct {
	w         *World
	id        ecs.EntityID
	name      string
	parent    *Object
	children  []*Object
	active    bool
	destroyed bool
}

// ID 返回对象的实体ID
func (o *Object) ID() ecs.EntityID { return o.id }

// Name 返回对象名称
func (o *Object) Name() string { return o.name }

// World 返回对象所属的场景
func (o *Object) World() *World { return o.w }

// Parent 返回父对象，根对象返回 nil
func (o *Object) Parent() *Object { return o.parent }

// Children 返回子对象（按创建顺序）
func (o *Object) Children() []*Object { return o.children }

// Destroyed 报告对象是否已被销毁
func (o *Object) Destroyed() bool { return o.destroyed }

// Active 返回对象自身的激活标志
func (o *Object) Active() bool { return o.active }

// SetActive 设置对象自身的激活标志
func (o *Object) SetActive(active bool) { o.active = active }

// ActiveInHierarchy 对象及其所有祖先都处于激活状态
func (o *Object) ActiveInHierarchy() bool {
	for cur := o; cur != nil; cur = cur.parent {
		if !cur.active {
			return false
		}
	}
	return true
}

// Path 返回从根对象开始的路径，如 "UI/Panel/Icon"
func (o *Object) Path() string {
	var parts []string
	for cur := o; cur != nil; cur = cur.parent {
		parts = append(parts, cur.name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// Find 按相对路径查找子孙对象
func (o *Object) Find(path string) *Object {
	path = strings.Trim(path, "/")
	if path == "" {
		return o
	}
	first, rest, _ := strings.Cut(path, "/")
	for _, child := range o.children {
		if child.name != first {
			continue
		}
		if rest == "" {
			return child
		}
		if found := child.Find(rest); found != nil {
			return found
		}
	}
	return nil
}

// Components 返回对象上挂载的所有组件
func (o *Object) Components() []Component {
	var result []Component
	for _, c := range o.w.em.Components(o.id) {
		if comp, ok := c.(Component); ok {
			result = append(result, comp)
		}
	}
	return result
}

// Transform 返回对象的 Transform 组件，没有时返回 nil
func (o *Object) Transform() *Transform {
	t, _ := Get[*Transform](o)
	return t
}

// UndoKey 对象及其组件共用同一个回滚键
func (o *Object) UndoKey() any { return o }

// Snapshot 记录对象及其所有子孙的状态（激活标志与组件数据）
// 恢复时子孙对象先于父对象恢复。
func (o *Object) Snapshot() undo.Memento {
	var restores []func()
	o.walk(func(cur *Object) {
		active := cur.active
		restores = append(restores, func() { cur.active = active })
		for _, c := range cur.Components() {
			if s, ok := c.(stateful); ok {
				restores = append(restores, s.saveState())
			}
		}
	})
	return undo.MementoFunc(func() {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
	})
}

func (o *Object) walk(fn func(*Object)) {
	fn(o)
	for _, child := range o.children {
		child.walk(fn)
	}
}

// stateful 可以保存并恢复自身数据的组件
type stateful interface {
	saveState() (restore func())
}

// Component 挂载在对象上的组件
//
// 在其他包中实现组件需要嵌入 ComponentBase。
type Component interface {
	Object() *Object
	Kind() string
	attach(o *Object)
}

// ComponentBase 组件公共部分：所属对象
type ComponentBase struct {
	owner *Object
}

// Object 返回组件所属的对象，未挂载时返回 nil
func (b *ComponentBase) Object() *Object { return b.owner }

func (b *ComponentBase) attach(o *Object) { b.owner = o }

// UndoKey 组件与所属对象共用回滚键
func (b *ComponentBase) UndoKey() any {
	if b.owner == nil {
		return b
	}
	return b.owner
}

// Snapshot 组件快照即所属对象的快照
func (b *ComponentBase) Snapshot() undo.Memento {
	if b.owner == nil {
		return nil
	}
	return b.owner.Snapshot()
}

// Add 把组件挂载到对象上，同类型组件会被替换
func Add[T Component](o *Object, c T) T {
	c.attach(o)
	ecs.AddComponent[T](o.w.em, o.id, c)
	return c
}

// Get 获取对象上的 T 类型组件
func Get[T Component](o *Object) (T, bool) {
	if o == nil {
		var zero T
		return zero, false
	}
	return ecs.GetComponent[T](o.w.em, o.id)
}

// Remove 移除对象上的 T 类型组件
func Remove[T Component](o *Object) {
	ecs.RemoveComponent[T](o.w.em, o.id)
}

// KindObject 表示绑定对象本身而不是某个组件
const KindObject = "object"

// ComponentByKind 按类型名获取对象上的组件
// kind 为 "object" 或空时返回对象本身。
func ComponentByKind(o *Object, kind string) (any, bool) {
	if o == nil {
		return nil, false
	}
	if kind == "" || kind == KindObject {
		return o, true
	}
	for _, c := range o.Components() {
		if c.Kind() == kind {
			return c, true
		}
	}
	return nil, false
}

// Resolve 按路径和类型名查找绑定目标，找不到时记录警告
func (w *World) Resolve(path, kind string) (any, bool) {
	o := w.Find(path)
	if o == nil {
		warnMissing(path)
		return nil, false
	}
	return ComponentByKind(o, kind)
}

// TransformOf 提取目标的 Transform
// 支持 *Transform、*Object 和任意已挂载的组件。
func TransformOf(target any) (*Transform, bool) {
	switch v := target.(type) {
	case *Transform:
		return v, v != nil
	case *Object:
		if v == nil {
			return nil, false
		}
		t := v.Transform()
		return t, t != nil
	case Component:
		o := v.Object()
		if o == nil {
			return nil, false
		}
		t := o.Transform()
		return t, t != nil
	}
	return nil, false
}
