// Package s3iotest provides an in-memory s3io.Client for tests.
package s3iotest

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/studio1767/s3smartsync/internal/s3io"
)

type object struct {
	data         []byte
	storageClass string
	restore      s3io.RestoreState
}

// Memory is a bucket held in a map. Objects in archive storage classes
// behave like they do in S3: they can't be moved or downloaded until a
// restore completes.
type Memory struct {
	mu      sync.Mutex
	objects map[string]*object

	// failures injected per key and operation, see Fail
	failures map[string]error

	// BatchSize overrides MaxDeleteBatch when non-zero.
	BatchSize int

	// calls made, in order, as "op key" strings
	calls []string
}

func NewMemory() *Memory {
	return &Memory{
		objects:  make(map[string]*object),
		failures: make(map[string]error),
	}
}

// Put stores data under key with the given storage class. An empty class
// means STANDARD.
func (m *Memory) Put(key string, data []byte, storageClass string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if storageClass == "" {
		storageClass = "STANDARD"
	}
	m.objects[key] = &object{
		data:         append([]byte(nil), data...),
		storageClass: storageClass,
	}
}

// Fail makes the next and every later call of op ("exists", "upload",
// "move", "delete", "restore", "status") on key return err.
func (m *Memory) Fail(op, key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op+" "+key] = err
}

// CompleteRestore marks a pending restore on key as finished.
func (m *Memory) CompleteRestore(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if obj, ok := m.objects[key]; ok {
		obj.restore = s3io.RestoreCompleted
	}
}

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Data returns a copy of the object body.
func (m *Memory) Data(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// Calls returns the mutating calls made so far.
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *Memory) record(op, key string) error {
	m.calls = append(m.calls, op+" "+key)
	return m.failures[op+" "+key]
}

func (m *Memory) List(ctx context.Context) (map[string]*s3io.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	listing := make(map[string]*s3io.Object, len(m.objects))
	for key, obj := range m.objects {
		sum := md5.Sum(obj.data)
		listing[key] = &s3io.Object{
			Key:          key,
			Size:         int64(len(obj.data)),
			ETag:         hex.EncodeToString(sum[:]),
			StorageClass: obj.storageClass,
		}
	}
	return listing, nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("exists", key); err != nil {
		return false, err
	}
	_, ok := m.objects[key]
	return ok, nil
}

func (m *Memory) Upload(ctx context.Context, localPath, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("upload", key); err != nil {
		return 0, err
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return 0, err
	}
	m.objects[key] = &object{data: data, storageClass: "STANDARD"}

	return int64(len(data)), nil
}

func (m *Memory) DeleteBatch(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) > m.MaxDeleteBatch() {
		return nil, fmt.Errorf("batch of %d exceeds limit %d", len(keys), m.MaxDeleteBatch())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted []string
	var errs []error
	for _, key := range keys {
		if err := m.record("delete", key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		delete(m.objects, key)
		deleted = append(deleted, key)
	}
	return deleted, errors.Join(errs...)
}

func (m *Memory) MaxDeleteBatch() int {
	if m.BatchSize > 0 {
		return m.BatchSize
	}
	return 1000
}

func (m *Memory) Move(ctx context.Context, oldKey, newKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("move", oldKey); err != nil {
		return err
	}

	obj, ok := m.objects[oldKey]
	if !ok {
		return fmt.Errorf("copy %s: no such key", oldKey)
	}
	if s3io.IsArchiveClass(obj.storageClass) && obj.restore != s3io.RestoreCompleted {
		return &s3io.ErrRequiresRestore{Key: oldKey, Msg: "InvalidObjectState"}
	}

	m.objects[newKey] = &object{
		data:         obj.data,
		storageClass: obj.storageClass,
		restore:      obj.restore,
	}
	delete(m.objects, oldKey)

	return nil
}

func (m *Memory) RequestRestore(ctx context.Context, key string, tier s3io.RestoreTier, days int32) (s3io.RestoreRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("restore", key); err != nil {
		return s3io.RestoreFailed, err
	}

	obj, ok := m.objects[key]
	if !ok {
		return s3io.RestoreFailed, &s3io.ErrNoSuchObject{Key: key}
	}
	if !s3io.IsArchiveClass(obj.storageClass) {
		return s3io.RestoreNotRequired, nil
	}
	if obj.restore == s3io.RestoreInProgress {
		return s3io.RestoreAlreadyInProgress, nil
	}

	obj.restore = s3io.RestoreInProgress
	return s3io.RestoreInitiated, nil
}

func (m *Memory) RestoreStatus(ctx context.Context, key string) (*s3io.RestoreInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures["status "+key]; err != nil {
		return &s3io.RestoreInfo{Key: key, State: s3io.RestoreError, Err: err}, err
	}

	obj, ok := m.objects[key]
	if !ok {
		err := fmt.Errorf("status %s: no such key", key)
		return &s3io.RestoreInfo{Key: key, State: s3io.RestoreError, Err: err}, err
	}

	return &s3io.RestoreInfo{
		Key:          key,
		StorageClass: obj.storageClass,
		State:        obj.restore,
	}, nil
}

func (m *Memory) HasIdentities() bool {
	return false
}

func (m *Memory) Download(ctx context.Context, key string, sink io.Writer) (int64, error) {
	data, ok := m.Data(key)
	if !ok {
		return 0, fmt.Errorf("download %s: no such key", key)
	}
	return io.Copy(sink, bytes.NewReader(data))
}

var _ s3io.Client = (*Memory)(nil)
