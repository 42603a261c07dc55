// Package abicache implements the LRU-bounded contract-schema cache
// of spec §4.4: a bounded map from account name to compiled ABI
// schema, used to deserialize opaque action payloads into structured
// documents.
//
// The original source keeps this as a boost::multi_index_container
// indexed "by account" and "by last_accessed", read/write-locked and
// clone-on-read because schemas are read-heavy and write-rare. Per
// spec §9's re-expression note, this is a hash map behind a
// sync.RWMutex, with hashicorp/golang-lru (already in the teacher's
// own dependency graph) used only as the access-order index. A hit
// takes the read lock for the lookup and then the write lock for the
// access-time touch; schemas are returned shared, not cloned.
package abicache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/elastic/beats/v7/libbeat/logp"

	"github.com/EOSLaoMao/elasticsearch-ingest/internal/logs"
)

// Schema is a compiled contract ABI able to render an opaque payload
// as a structured value. Node-SDK-provided in production.
type Schema interface {
	// Decode renders the action payload for actionName into a JSON-
	// marshalable structure, honoring maxDecodeTime as a hard
	// wall-clock bound.
	Decode(ctx context.Context, actionName string, payload []byte, maxDecodeTime time.Duration) (interface{}, error)
	// SpecializeSetabiAbi rewrites the schema so the "abi" field of
	// the "setabi" struct is decoded as a nested abi_def rather than
	// raw bytes — spec §4.4, only ever applied to the system
	// account's own schema.
	SpecializeSetabiAbi()
}

// Compiler builds a Schema from a raw ABI document.
type Compiler func(rawABI []byte) (Schema, error)

// AccountsClient is the subset of esclient.Client used for the
// cache-miss path: fetching an account document to read its abi
// field.
type AccountsClient interface {
	Get(ctx context.Context, index, id string, out interface{}) error
}

type accountDoc struct {
	ABI []byte `json:"abi"`
}

const accountsIndex = "accounts"

// Cache is the LRU-bounded ABI schema cache.
type Cache struct {
	capacity      int
	systemAccount string
	compile       Compiler
	client        AccountsClient
	sizeLogLimiter *rate.Limiter
	logger        *logp.Logger

	mu      sync.RWMutex
	entries map[string]*entry
	order   *lruOrder
}

type entry struct {
	name         string
	schema       Schema
	lastAccessed time.Time
}

// New returns a Cache bounded at capacity entries (must be > 0, per
// spec §6's abi_cache_size validation, enforced by config.Validate).
func New(capacity int, systemAccount string, compile Compiler, client AccountsClient) *Cache {
	return &Cache{
		capacity:       capacity,
		systemAccount:  systemAccount,
		compile:        compile,
		client:         client,
		sizeLogLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
		logger:         logs.New(logs.ABICache),
		entries:        make(map[string]*entry, capacity),
		order:          newLRUOrder(),
	}
}

// Find returns the cached schema for name, populating the cache from
// the accounts index on a miss. A clone is never handed out since
// Schema implementations are treated as immutable once built; callers
// must not mutate the returned value.
func (c *Cache) Find(ctx context.Context, name string) (Schema, error) {
	if s, ok := c.lookup(name); ok {
		return s, nil
	}
	return c.fetchAndInsert(ctx, name)
}

func (c *Cache) lookup(name string) (Schema, bool) {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	c.mu.Lock()
	e.lastAccessed = time.Now()
	c.order.touch(name)
	c.mu.Unlock()
	return e.schema, true
}

func (c *Cache) fetchAndInsert(ctx context.Context, name string) (Schema, error) {
	var doc accountDoc
	if err := c.client.Get(ctx, accountsIndex, name, &doc); err != nil {
		return nil, errors.Wrapf(err, "abicache: fetch account %s", name)
	}

	schema, err := c.compile(doc.ABI)
	if err != nil {
		return nil, errors.Wrapf(err, "abicache: compile abi for %s", name)
	}
	if name == c.systemAccount {
		schema.SpecializeSetabiAbi()
	}

	c.insert(name, schema)
	return schema, nil
}

func (c *Cache) insert(name string, schema Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[name] = &entry{name: name, schema: schema, lastAccessed: time.Now()}
	c.order.touch(name)
	c.purgeLocked()

	if c.sizeLogLimiter.Allow() {
		c.logger.Infof("abi cache size: %d", len(c.entries))
	}
}

// Erase invalidates the cached schema for name — called on setabi,
// since the new schema replaces the old one (spec §4.4/§4.9.5).
func (c *Cache) Erase(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
	c.order.remove(name)
}

// purgeLocked evicts the least-recently-accessed entry while the
// cache holds more than capacity entries. Must be called with mu held.
func (c *Cache) purgeLocked() {
	for len(c.entries) > c.capacity {
		oldest, ok := c.order.oldest()
		if !ok {
			return
		}
		delete(c.entries, oldest)
		c.order.remove(oldest)
	}
}

// Len reports the current entry count, mostly for tests.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// lruOrder tracks access order with golang-lru's Cache used purely as
// an ordered key set (its values are unused) — this gives O(1)
// touch/oldest/remove without hand-rolling an intrusive list, mirroring
// how the original multi_index_container's by_last_access view is
// just an ordering index over the same records.
type lruOrder struct {
	c *lru.Cache
}

func newLRUOrder() *lruOrder {
	// A capacity-less backing cache: eviction policy is driven by
	// Cache.purgeLocked, not by golang-lru itself, so give it enough
	// headroom that it never evicts on its own.
	c, _ := lru.New(1 << 20)
	return &lruOrder{c: c}
}

func (o *lruOrder) touch(name string) {
	o.c.Add(name, struct{}{})
}

func (o *lruOrder) remove(name string) {
	o.c.Remove(name)
}

func (o *lruOrder) oldest() (string, bool) {
	key, _, ok := o.c.GetOldest()
	if !ok {
		return "", false
	}
	return key.(string), true
}
