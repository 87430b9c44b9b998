package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

// ErrSlotEmpty indicates the durable slot holds no snapshot.
var ErrSlotEmpty = errors.New("session: slot empty")

// Slot is the single named durable-storage location holding the
// serialized session snapshot.
type Slot interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Clear(ctx context.Context) error
}

// RedisSlot stores the snapshot under one Redis key.
type RedisSlot struct {
	client *redis.Client
	key    string
}

// NewRedisSlot constructs a RedisSlot.
func NewRedisSlot(client *redis.Client, key string) *RedisSlot {
	if key == "" {
		key = "malibag:session"
	}
	return &RedisSlot{client: client, key: key}
}

// Read returns the stored snapshot or ErrSlotEmpty.
func (s *RedisSlot) Read(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSlotEmpty
		}
		return nil, err
	}
	return data, nil
}

// Write persists the snapshot. No TTL: the session survives until an
// explicit logout clears it.
func (s *RedisSlot) Write(ctx context.Context, data []byte) error {
	return s.client.Set(ctx, s.key, data, 0).Err()
}

// Clear removes the snapshot.
func (s *RedisSlot) Clear(ctx context.Context) error {
	err := s.client.Del(ctx, s.key).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// FileSlot stores the snapshot in one file on disk, for deployments
// without Redis.
type FileSlot struct {
	path string
}

// NewFileSlot constructs a FileSlot at path.
func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

// Read returns the stored snapshot or ErrSlotEmpty.
func (s *FileSlot) Read(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSlotEmpty
		}
		return nil, err
	}
	return data, nil
}

// Write persists the snapshot atomically via rename.
func (s *FileSlot) Write(ctx context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Clear removes the snapshot file.
func (s *FileSlot) Clear(ctx context.Context) error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
