package track

import (
	"context"
	"fmt"

	"github.com/gonewx/playnodes/pkg/animation"
)

// PlayTrack 在另一个播放器上播放指定轨道并等待结束
//
// 目标可以是任何 TracksPlayer，或挂有 Player 组件的对象。
type PlayTrack struct {
	animation.Base `yaml:",inline"`
	Track          string `yaml:"track"`

	target TracksPlayer
}

// NewPlayTrack 创建嵌套播放动画
func NewPlayTrack() *PlayTrack {
	return &PlayTrack{Base: animation.Base{Enable: true}}
}

// SetTarget 绑定播放器
func (a *PlayTrack) SetTarget(target any) error {
	p := playerOf(target)
	if p == nil {
		return fmt.Errorf("%w: got %T, want a track player", animation.ErrTargetType, target)
	}
	a.target = p
	return nil
}

// Clone 复制配置
func (a *PlayTrack) Clone() animation.Animation {
	c := *a
	c.target = nil
	return &c
}

// Play 播放
func (a *PlayTrack) Play(ctx context.Context) error {
	p := a.target
	if p == nil {
		return fmt.Errorf("%w: play_track without a target", animation.ErrTargetType)
	}
	return animation.RunDelayed(ctx, a.Delay(), func(ctx context.Context) error {
		return p.Play(ctx, a.Track)
	})
}

func init() {
	animation.Register("play_track", func() animation.Animation { return NewPlayTrack() })
}
