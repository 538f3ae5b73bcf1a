package store

import (
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrClipNotFound 数据库中没有该剪辑
var ErrClipNotFound = errors.New("store: clip not found")

var clipsBucket = []byte("clips")

// ClipDB 打包的剪辑数据库，按名称保存剪辑 YAML 原文
type ClipDB struct {
	db *bolt.DB
}

// OpenClipDB 打开（不存在时创建）剪辑数据库
func OpenClipDB(path string) (*ClipDB, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open clip db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(clipsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create clips bucket: %w", err)
	}
	return &ClipDB{db: db}, nil
}

// Put 写入（覆盖）剪辑
func (c *ClipDB) Put(name string, data []byte) error {
	if name == "" {
		return errors.New("store: empty clip name")
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(clipsBucket).Put([]byte(name), data)
	})
}

// Get 读取剪辑，不存在时返回 ErrClipNotFound
func (c *ClipDB) Get(name string) ([]byte, error) {
	var out []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(clipsBucket).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrClipNotFound, name)
		}
		// bbolt 返回的切片只在事务内有效
		out = append([]byte(nil), data...)
		return nil
	})
	return out, err
}

// Delete 删除剪辑，不存在时不报错
func (c *ClipDB) Delete(name string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(clipsBucket).Delete([]byte(name))
	})
}

// Names 返回所有剪辑名（按字节序）
func (c *ClipDB) Names() ([]string, error) {
	var names []string
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(clipsBucket).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

// Close 关闭数据库
func (c *ClipDB) Close() error {
	return c.db.Close()
}
