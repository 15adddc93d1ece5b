// Package blob 提供台账快照的键值存储抽象，默认落本地文件，
// 亦可切换到Redis或MinIO。
package blob

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// ErrNotExist 指定键不存在
var ErrNotExist = errors.New("blob not exist")

// Store 键值快照存储
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// FileStore 本地文件存储，一个键对应数据目录下的一个文件
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get 读取键内容，键不存在返回ErrNotExist
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	return data, nil
}

// Put 全量写入，先写临时文件再重命名，避免半写快照
func (s *FileStore) Put(ctx context.Context, key string, data []byte) error {
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(key))
}
