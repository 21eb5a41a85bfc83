package extract

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"

	"github.com/kozaktomas/traceon/internal/gallery"
)

var bucketDescriptors = []byte("descriptors")

// Cache remembers extraction results by the SHA-256 of the image bytes.
// Results without faces are cached too; errors never are.
type Cache struct {
	db   *bbolt.DB
	next Extractor
}

// OpenCache opens (or creates) the bbolt file at path in front of next.
func OpenCache(path string, next Extractor) (*Cache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open descriptor cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDescriptors)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &Cache{db: db, next: next}, nil
}

func (c *Cache) lookup(key []byte) ([]gallery.Descriptor, bool) {
	var (
		descs []gallery.Descriptor
		found bool
	)
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDescriptors).Get(key)
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &descs)
	})
	if err != nil {
		log.WithError(err).Warn("Ignoring unreadable descriptor cache entry")
		return nil, false
	}
	return descs, found
}

func (c *Cache) store(key []byte, descs []gallery.Descriptor) error {
	data, err := json.Marshal(descs)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDescriptors).Put(key, data)
	})
}

// Extract serves cached results and falls through to the wrapped extractor on a miss.
func (c *Cache) Extract(ctx context.Context, image []byte) ([]gallery.Descriptor, error) {
	sum := sha256.Sum256(image)
	key := sum[:]

	if descs, ok := c.lookup(key); ok {
		log.WithField("faces", len(descs)).Debug("Descriptor cache hit")
		return descs, nil
	}

	descs, err := c.next.Extract(ctx, image)
	if err != nil {
		return nil, err
	}

	if err := c.store(key, descs); err != nil {
		log.WithError(err).Warn("Failed to cache descriptors")
	}
	return descs, nil
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	n := 0
	_ = c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketDescriptors).Stats().KeyN
		return nil
	})
	return n
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
