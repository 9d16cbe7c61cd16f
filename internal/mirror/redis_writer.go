// Package mirror publishes each contest's current leader to Redis so other
// services can read it without polling the results feed themselves.
package mirror

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/elecciones-pr/tablero/internal/poller"
	"github.com/elecciones-pr/tablero/internal/results"
)

// RedisClient abstracts the Redis operations used by RedisWriter.
// In production this is satisfied by Client; in tests by a mock.
type RedisClient interface {
	HSet(ctx context.Context, key string, values ...any) error
}

// Client adapts *redis.Client to RedisClient.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis.
func NewClient(addr, password string, db int) *Client {
	return &Client{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// HSet implements RedisClient.
func (c *Client) HSet(ctx context.Context, key string, values ...any) error {
	return c.rdb.HSet(ctx, key, values...).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// leaderSnapshot holds the last-written leader for a contest so repeated
// polls with the same standings are not rewritten.
type leaderSnapshot struct {
	Candidate  string
	Party      string
	Votes      int64
	Percentage string
	Winner     bool
}

// RedisWriter consumes poll results and writes the leader of every
// displayed contest using the schema:
//
//	Key:    {prefix}:leader:{office-slug}
//	Fields: candidate, party, votes, percentage, winner, updated_at
//
// Failed polls are ignored, as are contests with no candidates.
type RedisWriter struct {
	client RedisClient
	feed   <-chan poller.Event
	prefix string

	mu   sync.Mutex
	last map[string]leaderSnapshot // keyed by Redis key

	log *log.Entry
}

// NewRedisWriter creates a RedisWriter reading from feed, normally a
// Broadcaster subscription to poller.EventResult.
func NewRedisWriter(client RedisClient, feed <-chan poller.Event, prefix string) *RedisWriter {
	if prefix == "" {
		prefix = "tablero"
	}
	return &RedisWriter{
		client: client,
		feed:   feed,
		prefix: prefix,
		last:   make(map[string]leaderSnapshot),
		log:    log.WithField("component", "mirror"),
	}
}

// Run writes leaders until ctx is cancelled or the feed closes.
func (rw *RedisWriter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-rw.feed:
			if !ok {
				return
			}
			if ev.Kind != poller.EventResult || ev.Err != nil {
				continue
			}
			rw.write(ctx, ev.State)
		}
	}
}

// Key returns the Redis key for an office's leader.
func (rw *RedisWriter) Key(office results.Office) string {
	return fmt.Sprintf("%s:leader:%s", rw.prefix, office.Slug())
}

func (rw *RedisWriter) write(ctx context.Context, state poller.State) {
	groups := results.GroupByOffice(state.Records)

	for _, office := range results.Offices {
		leader, ok := results.FindLeader(groups[office])
		if !ok {
			continue
		}

		key := rw.Key(office)
		snap := leaderSnapshot{
			Candidate:  leader.Candidate,
			Party:      leader.Party,
			Votes:      leader.Votes,
			Percentage: leader.Percentage.String(),
			Winner:     leader.Winner,
		}

		rw.mu.Lock()
		prev, exists := rw.last[key]
		if exists && prev == snap {
			rw.mu.Unlock()
			continue
		}
		rw.last[key] = snap
		rw.mu.Unlock()

		err := rw.client.HSet(ctx, key,
			"candidate", snap.Candidate,
			"party", snap.Party,
			"votes", strconv.FormatInt(snap.Votes, 10),
			"percentage", snap.Percentage,
			"winner", strconv.FormatBool(snap.Winner),
			"updated_at", state.LastUpdated.UTC().Format(time.RFC3339),
		)
		if err != nil {
			// Forget the snapshot so the next poll retries the write.
			rw.mu.Lock()
			delete(rw.last, key)
			rw.mu.Unlock()
			rw.log.WithError(err).WithField("key", key).Warn("failed to write leader")
		}
	}
}
