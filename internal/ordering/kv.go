package ordering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
)

// KV is the persistence behind the ordering stores. Values are opaque strings.
type KV interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryKV keeps values for the lifetime of the process.
type MemoryKV struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{m: make(map[string]string)}
}

func (kv *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.m[key]
	return v, ok, nil
}

func (kv *MemoryKV) Set(_ context.Context, key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.m[key] = value
	return nil
}

const (
	backupSuffix    = ".bak"
	tmpSuffix       = ".tmp"
	filePermissions = 0o644
)

// FileKV stores all keys in one JSON document on disk.
type FileKV struct {
	path string
	mu   sync.Mutex
}

// NewFileKV creates the parent directory if needed. The file itself is
// created on first write.
func NewFileKV(path string) (*FileKV, error) {
	if path == "" {
		path = "data/preferences.json"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create preferences directory: %w", err)
	}
	return &FileKV{path: path}, nil
}

func (kv *FileKV) Get(_ context.Context, key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	data, err := kv.readLocked()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

func (kv *FileKV) Set(_ context.Context, key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	data, err := kv.readLocked()
	if err != nil {
		return err
	}
	data[key] = value
	return kv.writeLocked(data)
}

func (kv *FileKV) readLocked() (map[string]string, error) {
	raw, err := os.ReadFile(kv.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}

	data := make(map[string]string)
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse preferences: %w", err)
	}
	return data, nil
}

// writeLocked keeps the previous file as a backup and swaps in the new one via rename.
func (kv *FileKV) writeLocked(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	if _, err := os.Stat(kv.path); err == nil {
		if err := copyFile(kv.path, kv.path+backupSuffix); err != nil {
			return fmt.Errorf("backup preferences: %w", err)
		}
	}

	tmp := kv.path + tmpSuffix
	if err := os.WriteFile(tmp, raw, filePermissions); err != nil {
		return err
	}
	return os.Rename(tmp, kv.path)
}

func copyFile(src, dst string) error {
	raw, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, raw, filePermissions)
}

// RedisKV stores values as plain Redis strings without expiry.
type RedisKV struct {
	client *redis.Client
	prefix string
}

func NewRedisKV(client *redis.Client, prefix string) *RedisKV {
	return &RedisKV{client: client, prefix: prefix}
}

func (kv *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := kv.client.Get(ctx, kv.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (kv *RedisKV) Set(ctx context.Context, key, value string) error {
	return kv.client.Set(ctx, kv.prefix+key, value, 0).Err()
}
