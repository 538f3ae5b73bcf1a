// clippack 把剪辑目录打包进 bbolt 数据库
//
// 用法：
//
//	go run ./cmd/clippack -clips data/clips -out clips.db
//
// 每个剪辑以名称为键保存 YAML 原文，写入前会完整解析并校验。
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gonewx/playnodes/pkg/config"
	"github.com/gonewx/playnodes/pkg/store"
)

var (
	clipsPath string
	outPath   string
)

func parseFlags() {
	flag.StringVar(&clipsPath, "clips", "./data/clips", "剪辑文件或目录")
	flag.StringVar(&outPath, "out", "./clips.db", "输出的剪辑数据库")
	flag.Parse()
}

func main() {
	parseFlags()

	n, err := pack(clipsPath, outPath)
	handleError(err)
	fmt.Printf("packed %d clips into %s\n", n, outPath)
}

// pack 校验 clipsPath 下的剪辑并写入数据库，返回写入的剪辑数量
func pack(clipsPath, outPath string) (int, error) {
	dir, base := filepath.Split(filepath.Clean(clipsPath))
	if dir == "" {
		dir = "."
	}
	fsys := os.DirFS(dir)

	clips, err := config.NewClipManager(fsys, base)
	if err != nil {
		return 0, err
	}

	db, err := store.OpenClipDB(outPath)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	for _, name := range clips.Names() {
		source, _ := clips.Source(name)
		data, err := fs.ReadFile(fsys, source)
		if err != nil {
			return 0, err
		}
		if err := db.Put(name, data); err != nil {
			return 0, fmt.Errorf("clip %s: %w", name, err)
		}
	}
	return clips.Len(), nil
}

func handleError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
