// Package embedded 提供嵌入资源的统一访问接口
//
// 由于 Go embed 指令只能嵌入当前包目录及其子目录的文件，
// embed.FS 变量必须声明在项目根目录（embed.go）。
// 本包保存该文件系统，让其他包可以访问嵌入的场景、剪辑与运行时配置。
//
// 使用前必须调用 Init() 初始化。
package embedded

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
)

var (
	mu     sync.RWMutex
	dataFS fs.FS
)

// Init 初始化数据文件系统
// 必须在 main() 开始时、任何资源加载之前调用。
// 开发时可以传入 os.DirFS(".") 直接读取磁盘上的 data/ 目录。
func Init(data fs.FS) {
	mu.Lock()
	dataFS = data
	mu.Unlock()
}

// IsInitialized 返回 embedded 包是否已初始化
func IsInitialized() bool {
	mu.RLock()
	defer mu.RUnlock()
	return dataFS != nil
}

// FS 返回数据文件系统，路径以 "data/" 开头
func FS() (fs.FS, error) {
	mu.RLock()
	defer mu.RUnlock()
	if dataFS == nil {
		return nil, fmt.Errorf("embedded package not initialized, call Init() first")
	}
	return dataFS, nil
}

// normalize 标准化路径分隔符为正斜杠并校验前缀
func normalize(path string) (string, error) {
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "./")
	if !strings.HasPrefix(path, "data/") {
		return "", fmt.Errorf("unknown resource path prefix: %s (must start with 'data/')", path)
	}
	return path, nil
}

// ReadFile 读取嵌入文件
func ReadFile(path string) ([]byte, error) {
	fsys, err := FS()
	if err != nil {
		return nil, err
	}
	path, err = normalize(path)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(fsys, path)
}

// Exists 检查文件是否存在
func Exists(path string) bool {
	fsys, err := FS()
	if err != nil {
		return false
	}
	path, err = normalize(path)
	if err != nil {
		return false
	}
	_, err = fs.Stat(fsys, path)
	return err == nil
}
