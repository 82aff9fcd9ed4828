package persistence

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	pkgerrors "github.com/pkg/errors"
)

// ErrKeyNotFound 读取不存在的 key 时返回
var ErrKeyNotFound = errors.New("persistence: key not found")

// BadgerService 基于 Badger 的持久化实现，值统一 JSON 编码
type BadgerService struct {
	db *badger.DB
}

// OpenBadger 打开（必要时创建）导出数据库
func OpenBadger(path string) (*BadgerService, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("persistence: path is required")
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "open badger at %s", path)
	}
	return &BadgerService{db: db}, nil
}

func (s *BadgerService) NewStore(id string, subIDs ...string) Store {
	parts := append([]string{id}, subIDs...)
	return &badgerStore{
		db:     s.db,
		prefix: strings.Join(parts, ":") + ":",
	}
}

func (s *BadgerService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type badgerStore struct {
	db     *badger.DB
	prefix string
}

func (b *badgerStore) Put(key string, val interface{}) error {
	data, err := json.Marshal(val)
	if err != nil {
		return pkgerrors.Wrapf(err, "marshal %s%s", b.prefix, key)
	}
	k := []byte(b.prefix + key)
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, data)
	})
}

func (b *badgerStore) Get(key string, val interface{}) error {
	k := []byte(b.prefix + key)
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			return err
		}
		return item.Value(func(data []byte) error {
			return json.Unmarshal(data, val)
		})
	})
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return pkgerrors.Wrapf(err, "get %s%s", b.prefix, key)
	}
	return err
}

func (b *badgerStore) Keys() ([]string, error) {
	var keys []string
	prefix := []byte(b.prefix)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().Key()
			keys = append(keys, string(k[len(prefix):]))
		}
		return nil
	})
	return keys, err
}

func (b *badgerStore) Delete(key string) error {
	k := []byte(b.prefix + key)
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
}

// MemoryService 内存实现，测试和禁用导出时使用
type MemoryService struct {
	stores map[string]*memoryStore
}

func NewMemoryService() *MemoryService {
	return &MemoryService{stores: make(map[string]*memoryStore)}
}

func (m *MemoryService) NewStore(id string, subIDs ...string) Store {
	parts := append([]string{id}, subIDs...)
	name := strings.Join(parts, ":")
	if st, ok := m.stores[name]; ok {
		return st
	}
	st := &memoryStore{data: make(map[string][]byte)}
	m.stores[name] = st
	return st
}

func (m *MemoryService) Close() error { return nil }

type memoryStore struct {
	data map[string][]byte
}

func (m *memoryStore) Put(key string, val interface{}) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	m.data[key] = data
	return nil
}

func (m *memoryStore) Get(key string, val interface{}) error {
	data, ok := m.data[key]
	if !ok {
		return ErrKeyNotFound
	}
	return json.Unmarshal(data, val)
}

func (m *memoryStore) Keys() ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memoryStore) Delete(key string) error {
	delete(m.data, key)
	return nil
}
