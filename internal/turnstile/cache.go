package turnstile

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"log"

	"github.com/bluele/gcache"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/turnstile-stats/internal/store"
)

// LoadFunc produces the parsed series of a file on a cache miss.
type LoadFunc func() (Series, error)

// chunk is the persisted form of a parsed file.
type chunk struct {
	Readings Series
}

// FileCache memoizes parsed source files keyed by publication date. The
// persistent store is the source of truth; hot keeps recently decoded
// chunks in memory. Entries are never evicted from the store.
type FileCache struct {
	store  Store
	hot    gcache.Cache
	flight singleflight.Group
}

// NewFileCache wraps st. hotSize bounds the in-memory LRU; 0 disables it.
func NewFileCache(st Store, hotSize int) *FileCache {
	c := &FileCache{store: st}
	if hotSize > 0 {
		c.hot = gcache.New(hotSize).LRU().Build()
	}
	return c
}

// GetOrLoad returns the cached series for desc, calling load and
// persisting its result on a miss. Nothing is stored when load fails.
func (c *FileCache) GetOrLoad(desc FileDescriptor, load LoadFunc) (Series, error) {
	key := desc.Key()

	if c.hot != nil {
		if v, err := c.hot.Get(key); err == nil {
			return v.(Series), nil
		}
	}

	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		s, err := c.fromStore(key)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("cache: reading %s failed, reloading: %v", key, err)
		}

		s, err = load()
		if err != nil {
			return nil, err
		}
		if err := c.persist(key, s); err != nil {
			log.Printf("cache: persisting %s failed: %v", key, err)
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	s := v.(Series)
	if c.hot != nil {
		_ = c.hot.Set(key, s)
	}
	return s, nil
}

// cached reports whether the store holds an artifact for desc.
func (c *FileCache) cached(desc FileDescriptor) bool {
	_, err := c.store.Get(desc.Key())
	return err == nil
}

func (c *FileCache) fromStore(key string) (Series, error) {
	data, err := c.store.Get(key)
	if err != nil {
		return nil, err
	}
	var ch chunk
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ch); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if ch.Readings == nil {
		ch.Readings = Series{}
	}
	return ch.Readings, nil
}

func (c *FileCache) persist(key string, s Series) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(chunk{Readings: s}); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.store.Put(key, buf.Bytes())
}
