// Package app 轨道查看器：加载场景与剪辑，按键播放和预览轨道
//
// 桌面端通过 main.go 调用 NewApp()。
package app

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/gonewx/playnodes/pkg/config"
	"github.com/gonewx/playnodes/pkg/embedded"
	"github.com/gonewx/playnodes/pkg/playback"
	"github.com/gonewx/playnodes/pkg/preview"
	"github.com/gonewx/playnodes/pkg/scene"
	"github.com/gonewx/playnodes/pkg/store"
	"github.com/gonewx/playnodes/pkg/track"
)

// 逻辑屏幕尺寸
const (
	ScreenWidth  = 800
	ScreenHeight = 600
)

// Config 定义应用启动配置
type Config struct {
	// Verbose 启用详细日志输出
	Verbose bool
	// Data 场景、剪辑与运行时配置所在的文件系统（路径以 "data/" 开头），nil 时使用 embedded
	Data fs.FS
	// ScenePath 场景文件
	ScenePath string
	// ClipPath 剪辑文件或目录
	ClipPath string
	// RuntimePath 运行时配置，为空时使用默认配置
	RuntimePath string
	// ClipDB 非 nil 时从打包的剪辑数据库加载剪辑，忽略 ClipPath
	ClipDB *store.ClipDB
	// Prefs 编辑器偏好，可为 nil
	Prefs *store.Prefs
	// Watch 非 nil 时收到事件后重新加载剪辑
	Watch *config.Watcher
}

// App 查看器，实现 ebiten.Game 接口
type App struct {
	cfg     Config
	runtime *config.RuntimeConfig

	sceneCfg *config.SceneConfig
	world    *scene.World
	clips    *config.ClipManager
	players  []*track.Player

	rt     *playback.Runtime
	ctx    context.Context
	cancel context.CancelFunc

	session      *preview.Session
	pump         *preview.ManualPump
	pendingTrack string

	selected int
	track    int
	status   string

	renderer *renderer
}

// NewApp 加载场景与剪辑并创建查看器
func NewApp(cfg Config) (*App, error) {
	// 配置日志输出
	if !cfg.Verbose {
		log.SetOutput(io.Discard)
		log.SetFlags(0)
	}
	if cfg.Data == nil {
		data, err := embedded.FS()
		if err != nil {
			return nil, fmt.Errorf("资源未初始化: %w", err)
		}
		cfg.Data = data
	}

	runtimeCfg := config.DefaultRuntimeConfig()
	if cfg.RuntimePath != "" {
		loaded, err := config.LoadRuntimeConfig(cfg.Data, cfg.RuntimePath)
		if err != nil {
			return nil, fmt.Errorf("运行时配置加载失败: %w", err)
		}
		runtimeCfg = loaded
	}

	var (
		clips *config.ClipManager
		err   error
	)
	if cfg.ClipDB != nil {
		clips, err = config.NewClipManagerFromDB(cfg.ClipDB)
	} else {
		clips, err = config.NewClipManager(cfg.Data, cfg.ClipPath)
	}
	if err != nil {
		return nil, fmt.Errorf("剪辑加载失败: %w", err)
	}
	log.Printf("[Config] 成功加载 %d 个剪辑", clips.Len())

	sceneCfg, world, err := config.LoadScene(cfg.Data, cfg.ScenePath)
	if err != nil {
		return nil, fmt.Errorf("场景加载失败: %w", err)
	}

	a := &App{
		cfg:      cfg,
		runtime:  runtimeCfg,
		sceneCfg: sceneCfg,
		world:    world,
		clips:    clips,
		pump:     preview.NewManualPump(),
		renderer: newRenderer(),
	}
	if err := a.attachPlayers(); err != nil {
		return nil, err
	}

	a.rt = playback.NewRuntime()
	a.rt.DefaultEase = runtimeCfg.DefaultEase
	world.Attach(a.rt.Scheduler.OnUpdate)
	a.resetContext()

	previewRT := playback.NewRuntime()
	previewRT.DefaultEase = runtimeCfg.DefaultEase
	a.session = preview.NewSession(preview.Options{
		Runtime: previewRT,
		World:   world,
		Pump:    a.pump,
		Prefs:   cfg.Prefs,
		FPS:     runtimeCfg.PreviewFPS,
	})

	ebiten.SetTPS(runtimeCfg.TPS)
	for _, p := range a.players {
		p.Start(a.ctx).Forget()
	}
	a.status = "ready"
	return a, nil
}

// attachPlayers 移除旧的播放器组件并按当前剪辑重新挂载
func (a *App) attachPlayers() error {
	for _, o := range a.world.Objects() {
		scene.Remove[*track.Player](o)
	}
	players, err := config.AttachPlayers(a.world, a.sceneCfg, a.clips)
	if err != nil {
		return fmt.Errorf("播放器挂载失败: %w", err)
	}
	a.players = players
	if a.selected >= len(players) {
		a.selected = 0
	}
	return nil
}

// resetContext 取消所有运行中的播放并换一个新的上下文
func (a *App) resetContext() {
	if a.cancel != nil {
		a.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.ctx = playback.NewContext(ctx, a.rt)
	a.cancel = cancel
}

// Selected 返回当前选中的播放器
func (a *App) Selected() *track.Player {
	if len(a.players) == 0 {
		return nil
	}
	return a.players[a.selected]
}

// trackName 返回选中播放器的第 i 条轨道名
func (a *App) trackName(i int) (string, bool) {
	p := a.Selected()
	if p == nil {
		return "", false
	}
	tracks := p.Tracks()
	if i < 0 || i >= len(tracks) {
		return "", false
	}
	return tracks[i].Name, true
}

// PlayTrack 在运行时播放选中播放器的第 i 条轨道
func (a *App) PlayTrack(i int) {
	name, ok := a.trackName(i)
	if !ok {
		return
	}
	a.track = i
	a.status = "play " + name
	a.Selected().PlayAsync(a.ctx, name).Forget()
}

// Preview 预览选中的轨道；已有预览时先停止，待其回滚后再开始
func (a *App) Preview() {
	name, ok := a.trackName(a.track)
	if !ok {
		return
	}
	if a.session.IsPreviewing() {
		a.session.StopPreviewAnimation()
		a.pendingTrack = name
		return
	}
	a.startPreview(name)
}

func (a *App) startPreview(name string) {
	if err := a.session.PreviewAnimation(context.Background(), a.Selected(), name); err != nil {
		log.Printf("[App] Warning: preview %q: %v", name, err)
		return
	}
	a.status = "preview " + name
}

// Reload 重新加载剪辑并重建播放器
func (a *App) Reload() {
	if err := a.clips.Reload(); err != nil {
		log.Printf("[App] Warning: reload failed: %v", err)
		a.status = "reload failed"
		return
	}
	a.session.StopPreviewAnimation()
	a.resetContext()
	if err := a.attachPlayers(); err != nil {
		log.Printf("[App] Warning: %v", err)
		a.status = "reload failed"
		return
	}
	a.status = fmt.Sprintf("reloaded %d clips", a.clips.Len())
}

// Step 推进一帧：预览进行时只推进预览，否则推进运行时
func (a *App) Step(deltaTime float64) {
	deltaTime = a.runtime.ClampDelta(deltaTime)
	if a.session.IsPreviewing() {
		a.pump.Step(deltaTime)
		return
	}
	if a.pendingTrack != "" {
		name := a.pendingTrack
		a.pendingTrack = ""
		a.startPreview(name)
		return
	}
	a.rt.Tick(deltaTime)
	a.world.ProcessDeferred()
}

// Update 处理输入并推进一帧
func (a *App) Update() error {
	a.handleInput()
	a.pollWatcher()
	a.Step(1.0 / float64(ebiten.TPS()))
	return nil
}

var trackKeys = []ebiten.Key{
	ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4, ebiten.Key5,
	ebiten.Key6, ebiten.Key7, ebiten.Key8, ebiten.Key9,
}

func (a *App) handleInput() {
	for i, key := range trackKeys {
		if inpututil.IsKeyJustPressed(key) {
			a.PlayTrack(i)
		}
	}
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyTab):
		if len(a.players) > 0 {
			a.selected = (a.selected + 1) % len(a.players)
			a.track = 0
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyP):
		a.Preview()
	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		a.session.StopPreviewAnimation()
		a.pendingTrack = ""
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		a.resetContext()
		a.status = "cancelled"
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		a.Reload()
	}
}

func (a *App) pollWatcher() {
	if a.cfg.Watch == nil {
		return
	}
	select {
	case name, ok := <-a.cfg.Watch.Events:
		if ok {
			log.Printf("[App] Clip changed: %s", name)
			a.Reload()
		}
	case err, ok := <-a.cfg.Watch.Errors:
		if ok {
			log.Printf("[App] Warning: watcher: %v", err)
		}
	default:
	}
}

// Draw 绘制场景与状态
func (a *App) Draw(screen *ebiten.Image) {
	a.renderer.drawWorld(screen, a.world)
	a.renderer.drawStatus(screen, a.statusLines())
}

// Layout 返回逻辑屏幕尺寸
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ScreenWidth, ScreenHeight
}

// Close 取消播放并结束预览
func (a *App) Close() {
	a.cancel()
	a.session.StopPreviewAnimation()
	a.pendingTrack = ""
	// 预览由手动帧源推进，关闭时继续推进直到回滚完成
	dt := 1.0 / float64(a.runtime.PreviewFPS)
	for a.session.IsPreviewing() {
		a.pump.Step(dt)
	}
	<-a.session.Done()
	a.session.Close()
	a.session.Runtime().Close()
	a.rt.Close()
}
