package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	actions "github.com/goliatone/go-auth-actions"
	goerrors "github.com/goliatone/go-errors"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces outcome keys.
const DefaultKeyPrefix = "actions:outcome:"

// OutcomeCache is a redis backed actions.OutcomeCache, shared between
// server instances.
type OutcomeCache struct {
	client goredis.Cmdable
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

var _ actions.OutcomeCache = (*OutcomeCache)(nil)

// NewOutcomeCache creates a cache storing outcomes for ttl.
func NewOutcomeCache(client goredis.Cmdable, ttl time.Duration) *OutcomeCache {
	if ttl <= 0 {
		ttl = actions.DefaultOutcomeTTL
	}
	return &OutcomeCache{
		client: client,
		prefix: DefaultKeyPrefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithPrefix overrides the key prefix.
func (c *OutcomeCache) WithPrefix(prefix string) *OutcomeCache {
	c.prefix = prefix
	return c
}

// WithClock injects a custom clock (useful for tests).
func (c *OutcomeCache) WithClock(now func() time.Time) *OutcomeCache {
	if now != nil {
		c.now = now
	}
	return c
}

// Key returns the redis key used for code.
func (c *OutcomeCache) Key(code string) string {
	return c.prefix + actions.OutcomeKey(code)
}

// Lookup implements actions.OutcomeCache.
func (c *OutcomeCache) Lookup(ctx context.Context, code string) (*actions.LinkOutcome, bool, error) {
	data, err := c.client.Get(ctx, c.Key(code)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to read link outcome")
	}

	outcome := &actions.LinkOutcome{}
	if err := json.Unmarshal(data, outcome); err != nil {
		return nil, false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode link outcome")
	}

	return outcome, true, nil
}

// Record implements actions.OutcomeCache. SETNX keeps the first outcome.
func (c *OutcomeCache) Record(ctx context.Context, code string, outcome actions.LinkOutcome) error {
	if outcome.RecordedAt.IsZero() {
		outcome.RecordedAt = c.now()
	}

	data, err := json.Marshal(outcome)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode link outcome")
	}

	if err := c.client.SetNX(ctx, c.Key(code), data, c.ttl).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to store link outcome")
	}

	return nil
}

// NewClient parses a redis URL and checks the connection, the way the
// server wires its shared client.
func NewClient(ctx context.Context, url, password string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid redis url")
	}

	if password != "" {
		opts.Password = password
	}

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "redis is unreachable")
	}

	return client, nil
}
