package engine

import (
	"path"
	"strings"
	"sync"
	"time"
)

// Resolver performs the actual HEAD against the service adapter, used by
// Cache.Get to populate a missing or expired entry.
type Resolver interface {
	Head(path string) (*HeadResult, error)
}

// Cache is the path-keyed object map: per-entry expiry, descending-
// priority type construction via Registry, lock-by-path serialization,
// and a background eviction sweep.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	registry *Registry
	resolver Resolver
	ttl      time.Duration

	sweepStop chan struct{}
	sweepDone chan struct{}
}

type entry struct {
	mu  sync.Mutex // serializes lock_object against this specific path
	obj Object
}

// NewCache builds a Cache that resolves misses through resolver, using
// registry to construct concrete Objects, with entries valid for ttl
// after each successful HEAD. A background sweep goroutine starts
// immediately; call Close to stop it.
func NewCache(resolver Resolver, registry *Registry, ttl time.Duration, sweepInterval time.Duration) *Cache {
	if registry == nil {
		registry = NewRegistry()
	}
	c := &Cache{
		entries:   make(map[string]*entry),
		registry:  registry,
		resolver:  resolver,
		ttl:       ttl,
		sweepStop: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	if sweepInterval > 0 {
		go c.sweepLoop(sweepInterval)
	} else {
		close(c.sweepDone)
	}
	return c
}

func (c *Cache) entryFor(path string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok {
		e = &entry{}
		c.entries[path] = e
	}
	return e
}

// Get returns the current Object for path, synchronously populating the
// entry from HEAD if it is missing or its expiry has passed.
func (c *Cache) Get(path string) (Object, error) {
	e := c.entryFor(path)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.obj != nil && e.obj.Expiry().After(time.Now()) {
		return e.obj, nil
	}

	resp, err := c.resolver.Head(path)
	if err != nil {
		return nil, err
	}
	obj := c.registry.Construct(path, resp)
	obj.SetExpiry(time.Now().Add(c.ttl))
	e.obj = obj
	return obj, nil
}

// LockObject runs fn against the single, currently-cached Object for
// path, creating it via HEAD first if necessary, guaranteeing no other
// caller can race a replacement of that Object between lookup and
// mutation.
func (c *Cache) LockObject(path string, fn func(obj Object) error) error {
	e := c.entryFor(path)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.obj == nil || !e.obj.Expiry().After(time.Now()) {
		resp, err := c.resolver.Head(path)
		if err != nil {
			return err
		}
		obj := c.registry.Construct(path, resp)
		obj.SetExpiry(time.Now().Add(c.ttl))
		e.obj = obj
	}

	return fn(e.obj)
}

// Put installs a freshly-constructed Object directly (used after a PUT
// or mkdir, where the caller already knows the new state and would
// rather not round-trip a HEAD).
func (c *Cache) Put(path string, obj Object) {
	obj.SetExpiry(time.Now().Add(c.ttl))
	e := c.entryFor(path)
	e.mu.Lock()
	e.obj = obj
	e.mu.Unlock()
}

// Remove evicts path's entry immediately; used after mutations (unlink,
// rename source/destination) that make a cached Object stale in a way
// TTL expiry alone would not catch promptly.
func (c *Cache) Remove(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// InvalidateParent evicts the parent directory's cache entry so its next
// Read() sees a just-added or just-removed child.
func (c *Cache) InvalidateParent(childPath string) {
	parent := path.Dir(strings.TrimSuffix(childPath, "/"))
	if parent == "." {
		parent = ""
	} else if !strings.HasSuffix(parent, "/") {
		parent += "/"
	}
	if e, ok := c.lookupExisting(parent); ok {
		if dir, ok := e.obj.(*Directory); ok {
			dir.InvalidateChildren()
		}
	}
	c.Remove(parent)
}

func (c *Cache) lookupExisting(path string) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	return e, ok
}

// sweepLoop periodically removes entries whose expiry lies in the past
// and whose object reports IsRemovable (no outstanding references).
func (c *Cache) sweepLoop(interval time.Duration) {
	defer close(c.sweepDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.sweepStop:
			return
		case <-ticker.C:
			c.sweepExpired()
		}
	}
}

func (c *Cache) sweepExpired() {
	now := time.Now()

	c.mu.Lock()
	candidates := make([]string, 0, len(c.entries))
	for path, e := range c.entries {
		candidates = append(candidates, path)
		_ = e
	}
	c.mu.Unlock()

	for _, path := range candidates {
		c.mu.Lock()
		e, ok := c.entries[path]
		c.mu.Unlock()
		if !ok {
			continue
		}

		e.mu.Lock()
		expired := e.obj != nil && !e.obj.Expiry().After(now)
		removable := e.obj == nil || e.obj.IsRemovable()
		e.mu.Unlock()

		if expired && removable {
			c.mu.Lock()
			delete(c.entries, path)
			c.mu.Unlock()
		}
	}
}

// Close stops the background sweep goroutine.
func (c *Cache) Close() {
	select {
	case <-c.sweepStop:
	default:
		close(c.sweepStop)
	}
	<-c.sweepDone
}
