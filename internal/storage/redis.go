package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a persistent article cache shared through Redis. It serves
// the same read operations as Store for deployments where several
// processes share one cache.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisCache(ctx context.Context, redisURL, prefix string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if prefix == "" {
		prefix = "dispatch:"
	}

	return &RedisCache{client: client, prefix: prefix, ttl: ttl, now: time.Now}, nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) articlesKey() string { return r.prefix + "articles" }
func (r *RedisCache) recentKey() string   { return r.prefix + "recent" }

func (r *RedisCache) categoryKey(category string) string {
	return r.prefix + "category:" + strings.ToLower(category)
}

func (r *RedisCache) batchKey(label string) string {
	return r.prefix + "batch:" + label
}

func (r *RedisCache) CacheArticles(ctx context.Context, articles []Article, batchLabel string) error {
	if len(articles) == 0 {
		return nil
	}
	cachedAt := r.now()
	score := float64(cachedAt.UnixMilli())

	pipe := r.client.TxPipeline()
	touched := map[string]struct{}{r.articlesKey(): {}, r.recentKey(): {}}
	for _, a := range articles {
		data, err := json.Marshal(cachedArticle{Article: a, Batch: batchLabel, CachedAt: cachedAt})
		if err != nil {
			return fmt.Errorf("encoding article %d: %w", a.ID, err)
		}
		member := strconv.FormatInt(a.ID, 10)
		pipe.HSet(ctx, r.articlesKey(), member, data)
		pipe.ZAdd(ctx, r.recentKey(), redis.Z{Score: score, Member: member})
		if a.Category != "" {
			key := r.categoryKey(a.Category)
			pipe.SAdd(ctx, key, member)
			touched[key] = struct{}{}
		}
		if batchLabel != "" {
			key := r.batchKey(batchLabel)
			pipe.SAdd(ctx, key, member)
			touched[key] = struct{}{}
		}
	}
	if r.ttl > 0 {
		for key := range touched {
			pipe.Expire(ctx, key, r.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis cache write: %w", err)
	}
	return nil
}

func (r *RedisCache) RecentArticles(ctx context.Context, limit int) ([]Article, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	members, err := r.client.ZRevRange(ctx, r.recentKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis recent range: %w", err)
	}
	return r.load(ctx, members)
}

func (r *RedisCache) ArticlesByCategory(ctx context.Context, category string) ([]Article, error) {
	members, err := r.client.SUnion(ctx, r.categoryKey(category), r.batchKey(category)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis category members: %w", err)
	}
	articles, err := r.load(ctx, members)
	if err != nil {
		return nil, err
	}
	sort.Slice(articles, func(i, j int) bool { return articles[i].ID > articles[j].ID })
	return articles, nil
}

func (r *RedisCache) ArticlesByIDs(ctx context.Context, ids []int64) ([]Article, error) {
	members := make([]string, len(ids))
	for i, id := range ids {
		members[i] = strconv.FormatInt(id, 10)
	}
	return r.load(ctx, members)
}

func (r *RedisCache) ArticleByID(ctx context.Context, id int64) (*Article, error) {
	data, err := r.client.HGet(ctx, r.articlesKey(), strconv.FormatInt(id, 10)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get article %d: %w", id, err)
	}
	var entry cachedArticle
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding article %d: %w", id, err)
	}
	return &entry.Article, nil
}

// Prune removes articles cached before cutoff from the hash and the recent
// set and returns their ids. Category and batch sets keep stale members;
// reads skip them.
func (r *RedisCache) Prune(ctx context.Context, cutoff time.Time) ([]int64, error) {
	members, err := r.client.ZRangeByScore(ctx, r.recentKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis prune range: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	pipe := r.client.TxPipeline()
	pipe.HDel(ctx, r.articlesKey(), members...)
	zmembers := make([]interface{}, len(members))
	for i, m := range members {
		zmembers[i] = m
	}
	pipe.ZRem(ctx, r.recentKey(), zmembers...)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis prune: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// load fetches members from the article hash, preserving order and
// skipping members whose entry has expired or been pruned.
func (r *RedisCache) load(ctx context.Context, members []string) ([]Article, error) {
	if len(members) == 0 {
		return []Article{}, nil
	}
	values, err := r.client.HMGet(ctx, r.articlesKey(), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load articles: %w", err)
	}
	articles := make([]Article, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var entry cachedArticle
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		articles = append(articles, entry.Article)
	}
	return articles, nil
}
