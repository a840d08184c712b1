package invoices

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPDFTTL bounds how long a rendered invoice stays cached.
const DefaultPDFTTL = 24 * time.Hour

// PDFCache keeps rendered invoices in Redis under invoice:pdf:<id>.
type PDFCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPDFCache constructs PDFCache.
func NewPDFCache(client *redis.Client, ttl time.Duration) *PDFCache {
	if ttl <= 0 {
		ttl = DefaultPDFTTL
	}
	return &PDFCache{client: client, ttl: ttl}
}

// Key returns the Redis key of an invoice document.
func (c *PDFCache) Key(id int64) string {
	return "invoice:pdf:" + strconv.FormatInt(id, 10)
}

// Get returns the cached document, reporting false on a miss.
func (c *PDFCache) Get(ctx context.Context, id int64) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put stores a rendered document.
func (c *PDFCache) Put(ctx context.Context, id int64, pdf []byte) error {
	return c.client.Set(ctx, c.Key(id), pdf, c.ttl).Err()
}

// Invalidate drops a document whose invoice changed.
func (c *PDFCache) Invalidate(ctx context.Context, id int64) error {
	return c.client.Del(ctx, c.Key(id)).Err()
}
