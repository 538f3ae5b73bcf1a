// playnodes 轨道查看器
//
// 用法：
//
//	go run . [flags]
//
// 参数：
//
//	-verbose        输出详细日志
//	-data <dir>     从磁盘目录读取 data/（默认使用嵌入资源），并监视剪辑目录热重载
//	-db <file>      从 bbolt 剪辑数据库加载剪辑（由 cmd/clippack 生成）
//	-scene <path>   场景文件（默认 data/scene.yaml）
//	-clips <path>   剪辑文件或目录（默认 data/clips）
//
// 按键：
//
//	1-9  播放选中播放器的轨道    Tab 切换播放器
//	P    预览选中的轨道（结束后回滚）  S 停止预览
//	Esc  取消运行中的播放        R 重新加载剪辑
package main

import (
	"flag"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/quasilyte/gdata/v2"

	"github.com/gonewx/playnodes/pkg/app"
	"github.com/gonewx/playnodes/pkg/config"
	"github.com/gonewx/playnodes/pkg/embedded"
	"github.com/gonewx/playnodes/pkg/store"
)

func main() {
	verbose := flag.Bool("verbose", false, "输出详细日志")
	dataDir := flag.String("data", "", "从磁盘目录读取 data/（包含 data 子目录的目录）")
	dbPath := flag.String("db", "", "bbolt 剪辑数据库")
	scenePath := flag.String("scene", "data/scene.yaml", "场景文件")
	clipPath := flag.String("clips", "data/clips", "剪辑文件或目录")
	flag.Parse()

	var data fs.FS = dataFS
	if *dataDir != "" {
		data = os.DirFS(*dataDir)
	}
	embedded.Init(data)

	cfg := app.Config{
		Verbose:     *verbose,
		ScenePath:   *scenePath,
		ClipPath:    *clipPath,
		RuntimePath: "data/runtime.yaml",
	}

	// 编辑器偏好：gdata 不可用时降级为内存模式
	gdataManager, err := gdata.Open(gdata.Config{AppName: "playnodes"})
	if err != nil {
		log.Printf("[Main] Warning: preferences unavailable: %v", err)
		gdataManager = nil
	}
	cfg.Prefs = store.NewPrefs(gdataManager)

	if *dbPath != "" {
		db, err := store.OpenClipDB(*dbPath)
		if err != nil {
			log.Fatalf("剪辑数据库打开失败: %v", err)
		}
		defer db.Close()
		cfg.ClipDB = db
	} else if *dataDir != "" {
		watcher, err := config.NewWatcher(filepath.Join(*dataDir, filepath.FromSlash(*clipPath)))
		if err != nil {
			log.Printf("[Main] Warning: hot reload disabled: %v", err)
		} else {
			defer watcher.Close()
			cfg.Watch = watcher
		}
	}

	viewer, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	defer viewer.Close()

	ebiten.SetWindowSize(app.ScreenWidth, app.ScreenHeight)
	ebiten.SetWindowTitle("playnodes")
	if err := ebiten.RunGame(viewer); err != nil {
		log.Fatal(err)
	}
}
