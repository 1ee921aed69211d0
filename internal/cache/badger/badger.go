// Package badger implements a persistent local blob cache on top of badger.
//
// Entries are written with a badger TTL; expired entries are invisible to
// reads and reclaimed by badger compaction. With an empty Path the database
// runs in memory, which limits entries to 1 MiB.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/cache"
	"github.com/dray-io/blobstore/internal/logging"
)

const keyPrefix = "blob/"

// DefaultGCInterval is the default period of value log garbage collection.
const DefaultGCInterval = 10 * time.Minute

// Config configures the badger cache.
type Config struct {
	// Path is the database directory. Empty runs in memory.
	Path string

	// TTL is the lifetime of an entry.
	TTL time.Duration

	// GCInterval is the period of value log garbage collection for on-disk
	// databases. Zero disables it.
	// Default: 10m
	GCInterval time.Duration

	// Logger receives value log GC failures.
	Logger *logging.Logger
}

// Cache is a BlobStoreCache backed by a badger database.
type Cache struct {
	db     *badgerdb.DB
	ttl    time.Duration
	logger *logging.Logger

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// New opens the database described by cfg.
func New(cfg Config) (*Cache, error) {
	if cfg.TTL <= 0 || cfg.TTL > cache.MaxTTL {
		return nil, fmt.Errorf("%w: ttl %s out of range", cache.ErrInvalidConfig, cfg.TTL)
	}

	opts := badgerdb.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger cache: open %q: %w", cfg.Path, err)
	}

	c := &Cache{
		db:     db,
		ttl:    cfg.TTL,
		logger: logging.OrGlobal(cfg.Logger).Named("cache.badger"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if cfg.Path != "" && cfg.GCInterval > 0 {
		go c.gcLoop(cfg.GCInterval)
	} else {
		close(c.doneCh)
	}
	return c, nil
}

func key(id blob.ID) []byte {
	return []byte(keyPrefix + id.String())
}

func (c *Cache) Cache(ctx context.Context, id blob.ID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(txn *badgerdb.Txn) error {
		return txn.SetEntry(badgerdb.NewEntry(key(id), data).WithTTL(c.ttl))
	})
}

func (c *Cache) Read(ctx context.Context, id blob.ID) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var data []byte
	err := c.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *Cache) Remove(ctx context.Context, id blob.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(key(id))
	})
}

// Close stops value log GC and closes the database.
func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopCh)
		<-c.doneCh
		err = c.db.Close()
	})
	return err
}

func (c *Cache) gcLoop(interval time.Duration) {
	defer close(c.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.runValueLogGC()
		}
	}
}

// runValueLogGC rewrites value log files until badger reports nothing left
// to reclaim.
func (c *Cache) runValueLogGC() {
	for {
		err := c.db.RunValueLogGC(0.5)
		if err == nil {
			continue
		}
		if !errors.Is(err, badgerdb.ErrNoRewrite) {
			c.logger.Warnf("value log gc failed", map[string]any{"error": err})
		}
		return
	}
}

var _ cache.BlobStoreCache = (*Cache)(nil)
