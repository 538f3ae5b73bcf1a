package track

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gonewx/playnodes/pkg/async"
	"github.com/gonewx/playnodes/pkg/playback"
	"github.com/gonewx/playnodes/pkg/scene"
)

// KindPlayer 播放器组件的类型名
const KindPlayer = "player"

// TracksPlayer 按名称播放轨道的入口
type TracksPlayer interface {
	// Tracks 返回轨道列表（只读）
	Tracks() []*Track
	// IsPlaying 有播放正在进行时为 true
	IsPlaying() bool
	// PlayAsync 在 ctx 绑定的运行时上启动播放
	PlayAsync(ctx context.Context, name string) *async.Task
	// Play 在当前任务中播放并等待结束
	Play(ctx context.Context, name string) error
}

// PlayerCollection 轨道列表 + 播放状态
//
// 找不到轨道时记录警告并直接返回，不视为错误。
// 同一个播放器上的重叠播放会让 IsPlaying 保持为 true，直到最后一个结束。
type PlayerCollection struct {
	mu      sync.RWMutex
	tracks  []*Track
	playing atomic.Int32
}

// NewPlayerCollection 创建播放器
func NewPlayerCollection(tracks ...*Track) *PlayerCollection {
	return &PlayerCollection{tracks: tracks}
}

// Tracks 返回轨道列表
func (c *PlayerCollection) Tracks() []*Track {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tracks
}

// SetTracks 替换轨道列表（编辑器修改或热重载）
func (c *PlayerCollection) SetTracks(tracks []*Track) {
	c.mu.Lock()
	c.tracks = tracks
	c.mu.Unlock()
}

// Find 返回第一个名称匹配且激活的轨道
func (c *PlayerCollection) Find(name string) *Track {
	return FindTrack(c.Tracks(), name)
}

// IsPlaying 有播放正在进行时为 true
func (c *PlayerCollection) IsPlaying() bool {
	return c.playing.Load() > 0
}

// Play 在当前任务中播放名为 name 的轨道
func (c *PlayerCollection) Play(ctx context.Context, name string) error {
	t := c.Find(name)
	if t == nil {
		log.Printf("[TrackPlayer] Warning: track %q not found", name)
		return nil
	}
	c.playing.Add(1)
	defer c.playing.Add(-1)
	return t.Play(ctx)
}

// PlayAsync 以任务方式播放名为 name 的轨道
// ctx 未绑定运行时时返回已失败的任务。
func (c *PlayerCollection) PlayAsync(ctx context.Context, name string) *async.Task {
	rt, err := playback.FromContext(ctx)
	if err != nil {
		return async.Failed(err)
	}
	return rt.Scheduler.Go(ctx, func(ctx context.Context) error {
		return c.Play(ctx, name)
	})
}

// Player 挂载在场景对象上的播放器组件
//
// 作为节点目标时可被 play_track 动画驱动，实现轨道嵌套。
type Player struct {
	scene.ComponentBase
	*PlayerCollection

	// PlayOnStart 非空时 Start 会播放该轨道
	PlayOnStart string
}

// NewPlayer 创建播放器组件
func NewPlayer(tracks ...*Track) *Player {
	return &Player{PlayerCollection: NewPlayerCollection(tracks...)}
}

// Kind 返回 "player"
func (p *Player) Kind() string { return KindPlayer }

// Key 返回播放器的稳定标识（所属对象路径），用于保存编辑器偏好
func (p *Player) Key() string {
	if o := p.Object(); o != nil {
		return o.Path()
	}
	return ""
}

// Start 播放 PlayOnStart 指定的轨道，未指定时返回已完成的任务
func (p *Player) Start(ctx context.Context) *async.Task {
	if p.PlayOnStart == "" {
		return async.Completed()
	}
	return p.PlayAsync(ctx, p.PlayOnStart)
}

// playerOf 把目标解析为播放器：播放器本身，或挂有 Player 组件的对象
func playerOf(target any) TracksPlayer {
	switch v := target.(type) {
	case TracksPlayer:
		return v
	case *scene.Object:
		if p, ok := scene.Get[*Player](v); ok {
			return p
		}
	}
	return nil
}

// Players 返回场景中所有播放器组件（按对象创建顺序）
func Players(w *scene.World) []*Player {
	var result []*Player
	for _, o := range w.Objects() {
		if p, ok := scene.Get[*Player](o); ok {
			result = append(result, p)
		}
	}
	return result
}
