package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheClient is the subset of *memcache.Client used by Memcached.
type MemcacheClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
}

// Memcached is a cache backed by memcached. Every value is stored as "<unix time>|<data>" so that its age is
// known without a separate lookup.
type Memcached struct {
	client MemcacheClient
	expire int32
	now    func() time.Time

	// most recently fetched entry
	mu       sync.Mutex
	id       string
	modTime  int64
	data     []byte
	hasEntry bool
}

// NewMemcached returns a cache using an already configured client. Entries expire after expire, zero means they
// never expire.
func NewMemcached(client MemcacheClient, expire time.Duration) *Memcached {
	return &Memcached{
		client: client,
		expire: int32(expire / time.Second),
		now:    time.Now,
	}
}

// Store writes data for id.
func (c *Memcached) Store(id string, data []byte) error {
	modTime := c.now().Unix()
	value := make([]byte, 0, len(data)+12)
	value = strconv.AppendInt(value, modTime, 10)
	value = append(value, '|')
	value = append(value, data...)
	if err := c.client.Set(&memcache.Item{Key: id, Value: value, Expiration: c.expire}); err != nil {
		return fmt.Errorf("memcached store %q: %w", id, err)
	}

	c.mu.Lock()
	c.id, c.modTime, c.data, c.hasEntry = id, modTime, data, true
	c.mu.Unlock()
	return nil
}

func (c *Memcached) fetch(id string) (int64, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasEntry && c.id == id {
		return c.modTime, c.data, nil
	}

	item, err := c.client.Get(id)
	if errors.Is(err, memcache.ErrCacheMiss) {
		c.hasEntry = false
		return 0, nil, ErrNotFound
	} else if err != nil {
		c.hasEntry = false
		return 0, nil, fmt.Errorf("memcached fetch %q: %w", id, err)
	}

	sep := bytes.IndexByte(item.Value, '|')
	if sep == -1 {
		c.hasEntry = false
		return 0, nil, fmt.Errorf("memcached fetch %q: malformed value", id)
	}
	modTime, err := strconv.ParseInt(string(item.Value[:sep]), 10, 64)
	if err != nil {
		c.hasEntry = false
		return 0, nil, fmt.Errorf("memcached fetch %q: malformed timestamp: %w", id, err)
	}

	c.id, c.modTime, c.data, c.hasEntry = id, modTime, item.Value[sep+1:], true
	return c.modTime, c.data, nil
}

// Fetch returns the data stored for id.
func (c *Memcached) Fetch(id string) ([]byte, error) {
	_, data, err := c.fetch(id)
	return data, err
}

// IsValid reports whether an entry for id exists that was stored at or after srcModTime.
func (c *Memcached) IsValid(id string, srcModTime time.Time) bool {
	modTime, _, err := c.fetch(id)
	return err == nil && srcModTime.Unix() <= modTime
}

// Size returns the length of the data stored for id in bytes.
func (c *Memcached) Size(id string) (int, error) {
	_, data, err := c.fetch(id)
	return len(data), err
}

// Display writes the data stored for id to w.
func (c *Memcached) Display(w io.Writer, id string) error {
	_, data, err := c.fetch(id)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
