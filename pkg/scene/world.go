// Package scene 提供动画作用的目标：对象层级与挂载在对象上的组件
//
// 对象与组件存放在 ecs.EntityManager 中：每个对象是一个实体，
// 组件以其指针类型为键挂载。层级关系（父子、名称路径）由 World 维护。
package scene

import (
	"log"
	"strings"

	"github.com/gonewx/playnodes/pkg/ecs"
)

// World 场景：对象层级 + 组件存储 + 延迟执行队列
//
// World 不是并发安全的，所有访问应在调度器的任务或钩子中进行。
type World struct {
	em       *ecs.EntityManager
	objects  map[ecs.EntityID]*Object
	roots    []*Object
	deferred []func()
}

// NewWorld 创建空场景
func NewWorld() *World {
	return &World{
		em:      ecs.NewEntityManager(),
		objects: make(map[ecs.EntityID]*Object),
	}
}

// EntityManager 返回底层的实体管理器
func (w *World) EntityManager() *ecs.EntityManager {
	return w.em
}

// NewObject 创建对象，parent 为 nil 时作为根对象
func (w *World) NewObject(name string, parent *Object) *Object {
	o := &Object{
		w:      w,
		id:     w.em.CreateEntity(),
		name:   name,
		active: true,
	}
	w.objects[o.id] = o
	if parent != nil {
		o.parent = parent
		parent.children = append(parent.children, o)
	} else {
		w.roots = append(w.roots, o)
	}
	return o
}

// Object 按实体ID查找对象
func (w *World) Object(id ecs.EntityID) (*Object, bool) {
	o, ok := w.objects[id]
	return o, ok
}

// Roots 返回根对象（按创建顺序）
func (w *World) Roots() []*Object {
	return w.roots
}

// Objects 返回所有存活对象（按创建顺序）
func (w *World) Objects() []*Object {
	ids := w.em.GetEntitiesWith()
	result := make([]*Object, 0, len(ids))
	for _, id := range ids {
		if o, ok := w.objects[id]; ok {
			result = append(result, o)
		}
	}
	return result
}

// Find 按路径查找对象，如 "UI/Panel/Icon"
// 第一段匹配根对象，同名时取第一个。找不到返回 nil。
func (w *World) Find(path string) *Object {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	first, rest, _ := strings.Cut(path, "/")
	for _, root := range w.roots {
		if root.name != first {
			continue
		}
		if rest == "" {
			return root
		}
		if found := root.Find(rest); found != nil {
			return found
		}
	}
	return nil
}

// Destroy 销毁对象及其所有子对象
// 对象立即从层级中摘除，实体在 ProcessDeferred 时才真正清理。
func (w *World) Destroy(o *Object) {
	if o == nil || o.destroyed {
		return
	}
	if o.parent != nil {
		o.parent.children = removeObject(o.parent.children, o)
	} else {
		w.roots = removeObject(w.roots, o)
	}
	o.markDestroyed()
}

func (o *Object) markDestroyed() {
	o.destroyed = true
	o.w.em.DestroyEntity(o.id)
	for _, child := range o.children {
		child.markDestroyed()
	}
}

func removeObject(list []*Object, o *Object) []*Object {
	for i, other := range list {
		if other == o {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Defer 登记在下一次 ProcessDeferred 时执行的函数
func (w *World) Defer(fn func()) {
	w.deferred = append(w.deferred, fn)
}

// ProcessDeferred 执行所有延迟函数并清理已销毁的实体
// 返回：执行的延迟函数数量
func (w *World) ProcessDeferred() int {
	n := 0
	for len(w.deferred) > 0 {
		batch := w.deferred
		w.deferred = nil
		for _, fn := range batch {
			fn()
			n++
		}
	}
	for _, id := range w.em.RemoveMarkedEntities() {
		delete(w.objects, id)
	}
	return n
}

// Update 推进场景中随时间变化的组件（粒子发射器）
func (w *World) Update(deltaTime float64) {
	for _, id := range ecs.GetEntitiesWith1[*ParticleEmitter](w.em) {
		o, ok := w.objects[id]
		if !ok || o.destroyed {
			continue
		}
		emitter, _ := ecs.GetComponent[*ParticleEmitter](w.em, id)
		emitter.update(deltaTime)
	}
}

// Attach 把 Update 注册为调度器风格的每帧钩子
// onUpdate 通常是 async.Scheduler.OnUpdate。
func (w *World) Attach(onUpdate func(func(float64)) func()) (detach func()) {
	return onUpdate(w.Update)
}

// warnMissing 记录路径查找失败
func warnMissing(path string) {
	log.Printf("[Scene] Warning: object %q not found", path)
}
